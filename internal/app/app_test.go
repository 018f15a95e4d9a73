package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"zapretd/internal/domain"
	"zapretd/internal/infra/proctable"
)

type recordingRunner struct {
	calls []string
}

func (r *recordingRunner) Run(_ context.Context, name string, _ ...string) error {
	r.calls = append(r.calls, name)
	return nil
}

func newTestApp(t *testing.T, table proctable.Table, openSettings bool) (*App, Config) {
	t.Helper()
	cfg, err := DefaultConfig(t.TempDir())
	require.NoError(t, err)
	cfg.SettleDelay = 5 * time.Millisecond
	cfg.SpawnDelay = 5 * time.Millisecond
	cfg.RestartDelay = 5 * time.Millisecond

	if table == nil {
		table = proctable.NewFake()
	}
	a, err := New(Options{
		Config:       cfg,
		Table:        table,
		Runner:       &recordingRunner{},
		OpenSettings: openSettings,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, a.Close())
	})
	return a, cfg
}

func writeProfile(t *testing.T, cfg Config, category domain.Category, name, content string) string {
	t.Helper()
	dir := filepath.Join(cfg.ProfilesDir, category.FolderName())
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name+domain.DefaultProfileExtension)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestListProfiles(t *testing.T) {
	a, cfg := newTestApp(t, nil, false)
	writeProfile(t, cfg, domain.CategoryGaming, "game", "--a\n")
	writeProfile(t, cfg, domain.CategoryDiscord, "discord", "--b\n")

	all := a.ListAllProfiles(context.Background())
	require.Len(t, all, 2)
	require.Equal(t, domain.CategoryDiscord, all[0].Category)
	require.Equal(t, domain.CategoryGaming, all[1].Category)

	youtube := a.ListProfilesForCategory(context.Background(), domain.CategoryYouTubeTwitch)
	require.NotNil(t, youtube)
	require.Empty(t, youtube)
}

func TestLookupProfile(t *testing.T) {
	a, cfg := newTestApp(t, nil, false)
	path := writeProfile(t, cfg, domain.CategoryUniversal, "all", "--a\n")

	profile, err := a.LookupProfile(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, domain.CategoryUniversal, profile.Category)

	_, err = a.LookupProfile(context.Background(), filepath.Join(cfg.ProfilesDir, "nope.conf"))
	require.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestDetectConflictsEmpty(t *testing.T) {
	a, _ := newTestApp(t, nil, false)
	got := a.DetectConflicts(context.Background())
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestDetectConflictsFound(t *testing.T) {
	table := proctable.NewFake()
	table.Add("goodbyedpi.exe", 42)
	a, _ := newTestApp(t, table, false)
	require.Equal(t, []string{"GoodbyeDPI"}, a.DetectConflicts(context.Background()))
}

func TestStartWithoutWorker(t *testing.T) {
	a, cfg := newTestApp(t, nil, false)
	path := writeProfile(t, cfg, domain.CategoryDiscord, "discord", "--b\n")
	profile, err := a.LookupProfile(context.Background(), path)
	require.NoError(t, err)

	err = a.Start(context.Background(), []domain.Profile{profile}, domain.Toggles{})
	require.ErrorIs(t, err, domain.ErrWorkerNotFound)
	require.False(t, a.IsRunning())
	require.Equal(t, 0, a.Health().Workers)
	require.Equal(t, "idle", a.Health().Status)
}

func TestAsyncRequestsRunInOrder(t *testing.T) {
	table := proctable.NewFake()
	a, cfg := newTestApp(t, table, false)
	path := writeProfile(t, cfg, domain.CategoryDiscord, "discord", "--b\n")
	profile, err := a.LookupProfile(context.Background(), path)
	require.NoError(t, err)

	events, cancel := a.SubscribeStatus(8)
	defer cancel()

	startErr := a.StartAsync(context.Background(), []domain.Profile{profile}, domain.Toggles{})
	stopErr := a.StopAsync(context.Background())

	require.ErrorIs(t, <-startErr, domain.ErrWorkerNotFound)
	require.NoError(t, <-stopErr)
	// Restart replays the last request, which still has no worker to run.
	require.ErrorIs(t, <-a.RestartAsync(context.Background()), domain.ErrWorkerNotFound)

	require.Eventually(t, func() bool { return len(events) >= 5 }, time.Second, 10*time.Millisecond)
	for len(events) > 0 {
		require.False(t, (<-events).Running)
	}
}

func TestAsyncSubmitDoesNotWaitForRunningJob(t *testing.T) {
	a, _ := newTestApp(t, nil, false)

	release := make(chan struct{})
	var order []string
	blocked := a.enqueue(context.Background(), func(context.Context) error {
		<-release
		order = append(order, "first")
		return nil
	})

	submitted := time.Now()
	second := a.enqueue(context.Background(), func(context.Context) error {
		order = append(order, "second")
		return nil
	})
	stopErr := a.StopAsync(context.Background())
	require.Less(t, time.Since(submitted), 100*time.Millisecond)

	select {
	case <-second:
		t.Fatal("second job ran before the first finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-blocked)
	require.NoError(t, <-second)
	require.NoError(t, <-stopErr)
	require.Equal(t, []string{"first", "second"}, order)
}

func TestAsyncCanceledBeforeRun(t *testing.T) {
	a, _ := newTestApp(t, nil, false)

	release := make(chan struct{})
	blocked := a.enqueue(context.Background(), func(context.Context) error {
		<-release
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	ran := false
	canceled := a.enqueue(ctx, func(context.Context) error {
		ran = true
		return nil
	})
	cancel()
	close(release)

	require.NoError(t, <-blocked)
	require.ErrorIs(t, <-canceled, context.Canceled)
	require.False(t, ran)
}

func TestAsyncAfterClose(t *testing.T) {
	cfg, err := DefaultConfig(t.TempDir())
	require.NoError(t, err)
	a, err := New(Options{Config: cfg, Table: proctable.NewFake()})
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	require.Error(t, <-a.StopAsync(context.Background()))
}

func TestSelectionRoundTrip(t *testing.T) {
	a, cfg := newTestApp(t, nil, true)
	discordPath := writeProfile(t, cfg, domain.CategoryDiscord, "discord", "--b\n")
	gamePath := writeProfile(t, cfg, domain.CategoryGaming, "game", "--a\n")

	discord, err := a.LookupProfile(context.Background(), discordPath)
	require.NoError(t, err)
	game, err := a.LookupProfile(context.Background(), gamePath)
	require.NoError(t, err)

	toggles := domain.Toggles{GamingAddressSet: true}
	require.NoError(t, a.SaveSelection([]domain.Profile{game, discord}, toggles))

	require.NoError(t, os.Remove(discordPath))
	selected, gotToggles, err := a.SelectedProfiles(context.Background())
	require.NoError(t, err)
	require.Equal(t, toggles, gotToggles)
	require.Equal(t, []domain.Profile{game}, selected)

	saved, err := a.Settings()
	require.NoError(t, err)
	require.True(t, saved.StartMinimized)
	require.Len(t, saved.SelectedProfiles, 2)
}

func TestSettingsRequireStore(t *testing.T) {
	a, _ := newTestApp(t, nil, false)
	_, err := a.Settings()
	require.True(t, errors.Is(err, domain.ErrSettingsClosed))
}

func TestSecondAppWithSettingsIsRejected(t *testing.T) {
	a, cfg := newTestApp(t, nil, true)
	_ = a

	_, err := New(Options{Config: cfg, Table: proctable.NewFake(), OpenSettings: true})
	require.ErrorIs(t, err, domain.ErrAlreadyRunning)
}

func TestResetNetworkUsesRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("resets the real user proxy settings on windows")
	}
	cfg, err := DefaultConfig(t.TempDir())
	require.NoError(t, err)
	runner := &recordingRunner{}
	a, err := New(Options{Config: cfg, Table: proctable.NewFake(), Runner: runner})
	require.NoError(t, err)
	defer a.Close()

	var progress []string
	report := a.ResetNetwork(context.Background(), func(msg string) {
		progress = append(progress, msg)
	})
	require.Len(t, report.Steps, 5)
	require.NotEmpty(t, runner.calls)
	require.NotEmpty(t, progress)
}
