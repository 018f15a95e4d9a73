package materialize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"zapretd/internal/domain"
)

func newProfile(t *testing.T, category domain.Category, content string) domain.Profile {
	t.Helper()
	dir := filepath.Join(t.TempDir(), category.FolderName())
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "sample.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return domain.Profile{Name: "sample", FileName: "sample", FilePath: path, Category: category}
}

func TestMaterializeTogglesOffReturnsOriginal(t *testing.T) {
	scratch := filepath.Join(t.TempDir(), "temp_configs")
	m := New(scratch, nil)
	profile := newProfile(t, domain.CategoryGaming, `--hostlist="lists/list.txt" --new`)

	path, err := m.Materialize(profile, domain.Toggles{ShowWindow: true})
	require.NoError(t, err)
	require.Equal(t, profile.FilePath, path)

	_, statErr := os.Stat(scratch)
	require.True(t, os.IsNotExist(statErr), "scratch dir must not be created")
}

func TestMaterializeGamingToggleRewritesGamingProfile(t *testing.T) {
	scratch := filepath.Join(t.TempDir(), "temp_configs")
	m := New(scratch, nil)
	profile := newProfile(t, domain.CategoryGaming,
		"--wf-udp=443\n"+`--hostlist="C:\path with spaces\list.txt" --other-flag`+"\n")

	path, err := m.Materialize(profile, domain.Toggles{GamingAddressSet: true})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(scratch, "dynamic_sample.conf"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "--wf-udp=443\n--other-flag\n", string(data))
}

func TestMaterializeGlobalToggle(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "temp_configs"), nil)

	discord := newProfile(t, domain.CategoryDiscord, "--hostlist=lists/discord.txt --dpi-desync=fake")
	path, err := m.Materialize(discord, domain.Toggles{GlobalAddressSet: true})
	require.NoError(t, err)
	require.NotEqual(t, discord.FilePath, path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "--dpi-desync=fake", string(data))

	gaming := newProfile(t, domain.CategoryGaming, "--hostlist=lists/games.txt --dpi-desync=fake")
	path, err = m.Materialize(gaming, domain.Toggles{GlobalAddressSet: true})
	require.NoError(t, err)
	require.Equal(t, gaming.FilePath, path, "global toggle alone must not touch gaming profiles")
}

func TestMaterializeDiscordUnaffectedByGamingToggle(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "temp_configs"), nil)
	discord := newProfile(t, domain.CategoryDiscord, "--hostlist=lists/discord.txt")

	path, err := m.Materialize(discord, domain.Toggles{GamingAddressSet: true})
	require.NoError(t, err)
	require.Equal(t, discord.FilePath, path)
}

func TestMaterializeBothTogglesRewriteEveryCategory(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "temp_configs"), nil)
	both := domain.Toggles{GlobalAddressSet: true, GamingAddressSet: true}
	for _, category := range domain.Categories() {
		profile := newProfile(t, category, "--hostlist=x.txt --keep")
		profile.FileName = category.FolderName()
		path, err := m.Materialize(profile, both)
		require.NoError(t, err)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, "--keep", string(data), category.String())
	}
}

func TestMaterializeMissingContentFallsBack(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "temp_configs"), nil)
	profile := domain.Profile{FileName: "gone", FilePath: filepath.Join(t.TempDir(), "gone.conf"), Category: domain.CategoryDiscord}

	path, err := m.Materialize(profile, domain.Toggles{GlobalAddressSet: true})
	require.NoError(t, err)
	require.Equal(t, profile.FilePath, path)
}

func TestMaterializeOverwritesPreviousScratch(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "temp_configs"), nil)
	profile := newProfile(t, domain.CategoryDiscord, "--hostlist=a.txt --one")
	_, err := m.Materialize(profile, domain.Toggles{GlobalAddressSet: true})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(profile.FilePath, []byte("--two"), 0o644))
	path, err := m.Materialize(profile, domain.Toggles{GlobalAddressSet: true})
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "--two", string(data))
}

func TestPurgeScratchIsIdempotent(t *testing.T) {
	scratch := filepath.Join(t.TempDir(), "temp_configs")
	m := New(scratch, nil)
	profile := newProfile(t, domain.CategoryDiscord, "--hostlist=a.txt --one")
	_, err := m.Materialize(profile, domain.Toggles{GlobalAddressSet: true})
	require.NoError(t, err)

	m.PurgeScratch()
	_, statErr := os.Stat(scratch)
	require.True(t, os.IsNotExist(statErr))

	require.NotPanics(t, m.PurgeScratch)
	require.NotPanics(t, New("", nil).PurgeScratch)
}

func TestRemoveParameter(t *testing.T) {
	cases := []struct {
		name string
		line string
		want string
	}{
		{name: "quoted with spaces", line: `--hostlist="C:\path with spaces\list.txt" --other-flag`, want: "--other-flag"},
		{name: "unquoted", line: "--a --hostlist=lists/x.txt --b", want: "--a  --b"},
		{name: "end of line", line: "--a --hostlist=lists/x.txt", want: "--a"},
		{name: "empty value", line: "--hostlist= --b", want: "--b"},
		{name: "unterminated quote", line: `--a --hostlist="broken path`, want: "--a"},
		{name: "absent", line: "--a --b", want: "--a --b"},
		{name: "only first occurrence", line: "--hostlist=a --hostlist=b", want: "--hostlist=b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, RemoveParameter(tc.line, domain.HostlistMarker))
		})
	}
}

func TestRewriteTrimsLines(t *testing.T) {
	got := Rewrite("  --x  \r\n\t--hostlist=a.txt --y\n# comment", domain.HostlistMarker)
	require.Equal(t, "--x\n--y\n# comment", got)
}
