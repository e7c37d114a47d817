package platform

import "path/filepath"

// getMacOSInfo returns platform-specific information for macOS
func getMacOSInfo(homeDir, username string) *Info {
	return &Info{
		OS:           MacOS,
		HomeDir:      homeDir,
		Username:     username,
		DefaultRoots: []string{homeDir},
		AlwaysExcluded: []string{
			".Trash",
			".Spotlight-V100",
			".fseventsd",
			"System",
			"Applications",
			"Volumes",
		},
		TraverseHidden: []string{
			".git",
			"Library",
		},
		SystemFileAllow: []string{
			".localized",
		},
		ProfileCacheDirs: []string{
			filepath.Join("Library", "Caches"),
			filepath.Join("Library", "Logs"),
		},
	}
}
