package platform

import "path/filepath"

// getLinuxInfo returns platform-specific information for Linux
func getLinuxInfo(homeDir, username string) *Info {
	return &Info{
		OS:           Linux,
		HomeDir:      homeDir,
		Username:     username,
		DefaultRoots: []string{homeDir},
		AlwaysExcluded: []string{
			"proc",
			"sys",
			"dev",
			"run",
			"tmp",
			"lost+found",
		},
		TraverseHidden: []string{
			".git",
			".config",
			".local",
		},
		SystemFileAllow: []string{
			".directory",
		},
		ProfileCacheDirs: []string{
			".cache",
			filepath.Join(".local", "share", "Trash"),
		},
	}
}
