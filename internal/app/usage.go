package app

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/go-github/v45/github"
	flag "github.com/spf13/pflag"
)

// Version is set at compile time
var Version = ""

const (
	Owner = "pouriyajamshidi"
	Repo  = "sipping"
)

var releaseTag = regexp.MustCompile(`^v?(\d+\.\d+\.\d+)$`)

// PrintUsage prints how sipping should be run
func PrintUsage(w io.Writer, executableName string) {
	fmt.Fprintf(w, "\nSIPPING version %s\n\n", Version)
	fmt.Fprintln(w, "Send SIP OPTIONS messages to a host and measure response time.")
	fmt.Fprintln(w, "Results are logged continuously to CSV.")
	fmt.Fprintf(w, "\nTry running %s like:\n", executableName)
	fmt.Fprintf(w, "%s <hostname/ip> [flags]. For example:\n", executableName)
	fmt.Fprintf(w, "%s pbx.example.com -c 10 -I 500\n", executableName)
	fmt.Fprintf(w, "\n[optional flags]\n")

	var cfg Config
	var logPath string
	var intervalMs, timeoutMs, count uint
	var showVer, checkUpdate bool
	fs := newFlagSet(&cfg, &logPath, &intervalMs, &timeoutMs, &count, &showVer, &checkUpdate)

	fs.VisitAll(func(f *flag.Flag) {
		name := "--" + f.Name
		if f.Shorthand != "" {
			name = "-" + f.Shorthand + ", " + name
		}
		fmt.Fprintf(w, "  %s : %s\n", name, f.Usage)
	})
}

func compareVersions(v1, v2 string) int {
	parts1 := strings.Split(v1, ".")
	parts2 := strings.Split(v2, ".")

	for i := range min(len(parts1), len(parts2)) {
		n1, _ := strconv.Atoi(parts1[i])
		n2, _ := strconv.Atoi(parts2[i])

		if n1 < n2 {
			return -1
		}
		if n1 > n2 {
			return 1
		}
	}

	// for cases in which version numbers differ in length
	if len(parts1) < len(parts2) {
		return -1
	}

	if len(parts1) > len(parts2) {
		return 1
	}

	return 0
}

// PrintVersion displays the version
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "SIPPING version %s\n", Version)
}

// CheckForUpdates checks for newer versions of sipping and returns update message
func CheckForUpdates(ctx context.Context, c *github.Client) (string, error) {
	if c == nil {
		c = github.NewClient(nil)
	}

	// unauthenticated requests from the same IP are limited to 60 per hour
	latestRelease, _, err := c.Repositories.GetLatestRelease(ctx, Owner, Repo)
	if err != nil {
		return "", fmt.Errorf("check for updates: %w", err)
	}

	latestTagName := latestRelease.GetTagName()
	latestVersion := releaseTag.FindStringSubmatch(latestTagName)

	if len(latestVersion) == 0 {
		return "", fmt.Errorf("version name does not match expected format: %s", latestTagName)
	}

	switch compareVersions(Version, latestVersion[1]) {
	case -1:
		return fmt.Sprintf("Found newer version %s\nPlease update SIPPING from the URL below:\nhttps://github.com/%s/%s/releases/tag/%s",
			latestVersion[1], Owner, Repo, latestTagName), nil
	case 1:
		return fmt.Sprintf("Current version %s is newer than the latest release %s",
			Version, latestVersion[1]), nil
	default:
		return fmt.Sprintf("SIPPING is on the latest version: %s", Version), nil
	}
}
