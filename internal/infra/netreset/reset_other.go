//go:build !windows

package netreset

// Proxy settings and the persistent user environment live in the registry on
// Windows only; elsewhere the process environment is all there is.

func resetProxySettings() error {
	return nil
}

func removeUserEnvironment([]string) error {
	return nil
}
