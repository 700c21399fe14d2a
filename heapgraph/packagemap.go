package heapgraph

import "strings"

// packagePrefix is one entry of the closed set of hardcoded location
// prefixes FinalizeProfile attributes to a specific system package,
// per spec.md GLOSSARY's "package path prefixes" list.
//
// The GLOSSARY names the prefixes but not the package string each maps to
// ("each maps to a specific package" is as far as the spec goes); the
// mapping below fills that gap with the real AOSP/Play-partition package
// each prefix names on-device, recorded as an Open Question decision in
// DESIGN.md since no source in the corpus carries the authoritative table.
var packagePrefixes = []packagePrefix{
	{match: "/system_ext/priv-app/SystemUIGoogle/", pkg: "com.google.android.systemui"},
	{match: "/product/priv-app/Phonesky/", pkg: "com.android.vending"},
	{match: "/product/app/Maps/", pkg: "com.google.android.apps.maps"},
	{match: "/system_ext/priv-app/NexusLauncherRelease/", pkg: "com.google.android.apps.nexuslauncher"},
	{match: "/product/app/Photos/", pkg: "com.google.android.apps.photos"},
	{match: "/product/priv-app/WellbeingPrebuilt/", pkg: "com.google.android.apps.wellbeing"},
	{match: "MatchMaker", pkg: "com.google.android.gms"},
	{match: "/product/app/PrebuiltGmail/", pkg: "com.google.android.gm"},
	{match: "/product/priv-app/PrebuiltGmsCore", pkg: "com.google.android.gms"},
	{match: "/product/priv-app/Velvet/", pkg: "com.google.android.googlequicksearchbox"},
	{match: "/product/app/LatinIMEGooglePrebuilt/", pkg: "com.google.android.inputmethod.latin"},
}

type packagePrefix struct {
	match string
	pkg   string
}

const mainPackagePathMarker = "/data/app/"

// classifyPackage attributes a location string to a package, per spec.md
// §4.9's finalization classification rules, checked in order: the closed
// hardcoded-prefix set, then the generic /data/app/ main-package path, then
// base.apk-prefixed locations (treated as unknown: the profile carries no
// better info), and finally unknown for everything else.
func classifyPackage(location string) string {
	if location == "" {
		return ""
	}
	for _, p := range packagePrefixes {
		if strings.Contains(location, p.match) {
			return p.pkg
		}
	}
	if idx := strings.Index(location, mainPackagePathMarker); idx >= 0 {
		return parseMainPackage(location[idx+len(mainPackagePathMarker):])
	}
	if strings.HasPrefix(location, "base.apk") {
		return ""
	}
	return ""
}

// parseMainPackage extracts the package name from the path segment that
// follows /data/app/: the first path component, with its first -suffix
// (the install-session random suffix APK installers append) stripped.
func parseMainPackage(rest string) string {
	seg := rest
	if i := strings.IndexByte(seg, '/'); i >= 0 {
		seg = seg[:i]
	}
	if seg == "" {
		return ""
	}
	if i := strings.IndexByte(seg, '-'); i >= 0 {
		seg = seg[:i]
	}
	return seg
}
