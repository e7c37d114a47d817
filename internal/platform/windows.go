package platform

import (
	"os"
	"path/filepath"
)

// getWindowsInfo returns platform-specific information for Windows
func getWindowsInfo(homeDir, username string) *Info {
	drive := filepath.VolumeName(homeDir)
	if drive == "" {
		drive = os.Getenv("SystemDrive")
	}

	return &Info{
		OS:           Windows,
		HomeDir:      homeDir,
		Username:     username,
		DefaultRoots: []string{drive + `\`, homeDir},
		AlwaysExcluded: []string{
			"$Recycle.Bin",
			"Program Files",
			"Program Files (x86)",
			"ProgramData",
			"Users",
			"Windows",
		},
		TraverseHidden: []string{
			".git",
			"AppData",
		},
		SystemFileAllow: []string{
			"desktop.ini",
		},
		ProfileCacheDirs: []string{
			filepath.Join("AppData", "Local"),
			filepath.Join("AppData", "LocalLow"),
		},
	}
}
