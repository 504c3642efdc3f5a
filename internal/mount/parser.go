package mount

import (
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultMountRoot is where hdiutil places attached volumes unless told otherwise.
const DefaultMountRoot = "/Volumes/"

// Markers hdiutil prints in its free-text attach report. They are matched
// case-insensitively anywhere in the combined stdout+stderr stream.
var (
	// busyPattern means the image or its mount point is held by another process.
	// Transient: the attach is retried.
	busyPattern = regexp.MustCompile(`(?i)resource busy`)

	// invalidPatterns mean the image itself is unusable. Never retried.
	invalidPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)no mountable file ?systems`),
		regexp.MustCompile(`(?i)image not recognized`),
	}
)

// OutcomeKind is the bucket an attach report falls into.
type OutcomeKind int

const (
	// OutcomeUnknown means no known marker and no mount path were found.
	OutcomeUnknown OutcomeKind = iota
	// OutcomeBusy means the resource busy marker was present.
	OutcomeBusy
	// OutcomeInvalidImage means the image is corrupt or not a disk image.
	OutcomeInvalidImage
	// OutcomeMounted means a mount path was found.
	OutcomeMounted
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeBusy:
		return "busy"
	case OutcomeInvalidImage:
		return "invalid-image"
	case OutcomeMounted:
		return "mounted"
	default:
		return "unknown"
	}
}

// Outcome is the classified form of one attach report.
type Outcome struct {
	Kind OutcomeKind
	// MountPath is set only for OutcomeMounted.
	MountPath string
	// Marker is the text that decided Busy or InvalidImage.
	Marker string
	// Raw is the unmodified tool output.
	Raw string
}

// Classify turns hdiutil attach output into an Outcome.
//
// Precedence is busy, then invalid image, then the first line mentioning
// mountRoot. The mount path runs from the root prefix to the end of that line,
// so volume names containing spaces survive.
func Classify(output, mountRoot string) Outcome {
	if mountRoot == "" {
		mountRoot = DefaultMountRoot
	}
	if o, ok := classifyMarkers(output); ok {
		return o
	}
	if p := firstMountPath(output, mountRoot); p != "" {
		return Outcome{Kind: OutcomeMounted, MountPath: p, Raw: output}
	}
	return Outcome{Kind: OutcomeUnknown, Raw: output}
}

// ClassifyMountPoint is Classify for an attach with an explicit -mountpoint.
// The report counts as mounted only when a line ends in exactly mountPoint.
func ClassifyMountPoint(output, mountPoint string) Outcome {
	if o, ok := classifyMarkers(output); ok {
		return o
	}
	want := strings.TrimRight(mountPoint, "/")
	for _, line := range strings.Split(output, "\n") {
		idx := strings.Index(line, want)
		if idx < 0 {
			continue
		}
		if strings.TrimRight(strings.TrimSpace(line[idx:]), "/") == want {
			return Outcome{Kind: OutcomeMounted, MountPath: want, Raw: output}
		}
	}
	return Outcome{Kind: OutcomeUnknown, Raw: output}
}

func classifyMarkers(output string) (Outcome, bool) {
	if m := busyPattern.FindString(output); m != "" {
		return Outcome{Kind: OutcomeBusy, Marker: m, Raw: output}, true
	}
	for _, re := range invalidPatterns {
		if m := re.FindString(output); m != "" {
			return Outcome{Kind: OutcomeInvalidImage, Marker: m, Raw: output}, true
		}
	}
	return Outcome{}, false
}

func firstMountPath(output, mountRoot string) string {
	for _, line := range strings.Split(output, "\n") {
		if p := mountPathInLine(line, mountRoot); p != "" {
			return p
		}
	}
	return ""
}

func mountPathInLine(line, mountRoot string) string {
	idx := strings.Index(line, mountRoot)
	if idx < 0 {
		return ""
	}
	p := strings.TrimSpace(line[idx:])
	// A bare root ("/Volumes/") is not a volume.
	if strings.TrimRight(p, "/") == strings.TrimRight(mountRoot, "/") {
		return ""
	}
	return p
}

// MountPointsFor scans `hdiutil info` output and returns the mount points of
// every attached instance of imagePath, in report order.
//
// The report is a sequence of blocks separated by "=====" rulers. Each block
// names its source in an "image-path : <path>" line and lists its partitions
// as tab-separated "/dev/diskNsM  <type>  <mount point>" rows.
func MountPointsFor(info, imagePath, mountRoot string) []string {
	if mountRoot == "" {
		mountRoot = DefaultMountRoot
	}
	var points []string
	for _, block := range infoBlocks(info) {
		if !blockHasImage(block, imagePath) {
			continue
		}
		for _, line := range block {
			if strings.HasPrefix(strings.TrimSpace(line), "image-") {
				continue
			}
			if p := mountPathInLine(line, mountRoot); p != "" {
				points = append(points, p)
			}
		}
	}
	return points
}

func infoBlocks(info string) [][]string {
	var blocks [][]string
	var cur []string
	for _, line := range strings.Split(info, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "=====") {
			if len(cur) > 0 {
				blocks = append(blocks, cur)
			}
			cur = nil
			continue
		}
		cur = append(cur, line)
	}
	if len(cur) > 0 {
		blocks = append(blocks, cur)
	}
	return blocks
}

func blockHasImage(block []string, imagePath string) bool {
	want := resolvePath(imagePath)
	for _, line := range block {
		key, value, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(key) != "image-path" {
			continue
		}
		if resolvePath(strings.TrimSpace(value)) == want {
			return true
		}
	}
	return false
}

// resolvePath follows symlinks so /var/... and /private/var/... compare equal.
// Paths that cannot be resolved are compared as given.
func resolvePath(p string) string {
	if r, err := filepath.EvalSymlinks(p); err == nil {
		return r
	}
	return filepath.Clean(p)
}
