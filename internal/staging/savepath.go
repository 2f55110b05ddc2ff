package staging

import (
	"context"
	"path"
	"strconv"
	"strings"
)

// Tokens substituted into filename templates before any path arithmetic.
const (
	widthToken  = "%width%"
	heightToken = "%height%"
)

// SavePath is the result of resolving a filename template against the
// current store contents. It is computed fresh per call and never cached;
// the counter reflects the store state observed during the resolving scan.
type SavePath struct {
	// Folder is the fully qualified output folder key.
	Folder string

	// Filename is the base name outputs are saved under, without counter.
	Filename string

	// Counter is the next free numeric suffix, minimum 1.
	Counter int

	// Subfolder is the directory portion of the template, empty when absent.
	Subfolder string

	// Resolved is the template after variable substitution.
	Resolved string
}

// ObjectKey returns the full key for a file named name inside the resolved
// output folder.
func (p SavePath) ObjectKey(name string) string {
	return path.Join(p.Folder, name)
}

// ResolveSavePath derives where the next output for template should be
// saved. The template may carry %width% and %height% tokens and an optional
// subfolder ("renders/frame%width%"). The returned counter is one past the
// highest counter found among existing keys in the target folder, so
// repeated saves under the same base name never collide.
//
// The computation is read-then-decide with no reservation step: two
// concurrent callers resolving the same folder and base name can observe the
// same maximum and pick the same counter, in which case the last upload wins.
// The scan is also bounded by the configured listing cap, so folders holding
// more keys than the cap may yield a counter that collides with an unscanned
// higher-numbered object.
//
// Store failures during the scan degrade to counter 1 rather than failing
// the call, trading a possible overwrite for not aborting the pipeline's
// save over a transient listing error.
func (s *Stager) ResolveSavePath(ctx context.Context, template string, width, height int) SavePath {
	resolved := substituteVars(template, width, height)
	subfolder, baseName := splitTemplate(resolved)
	folder := path.Join(s.outputRoot, subfolder)

	if err := s.EnsureFolder(ctx, folder); err != nil {
		s.log.WarnWith("failed to provision output folder", err, map[string]interface{}{
			"folder": folder,
		})
	}

	counter := nextCounter(s.Files(ctx, scanPrefix(folder)), baseName)

	s.log.With().
		Str("folder", folder).
		Str("filename", baseName).
		Int("counter", counter).
		Logger().
		Debug("resolved save path")

	return SavePath{
		Folder:    folder,
		Filename:  baseName,
		Counter:   counter,
		Subfolder: subfolder,
		Resolved:  resolved,
	}
}

// substituteVars replaces the literal %width% and %height% tokens with the
// decimal forms of width and height. Matches are exact string occurrences;
// overlapping text around a token is left untouched.
func substituteVars(template string, width, height int) string {
	out := strings.ReplaceAll(template, widthToken, strconv.Itoa(width))
	return strings.ReplaceAll(out, heightToken, strconv.Itoa(height))
}

// splitTemplate breaks a resolved template into its directory portion and
// base name, collapsing redundant separators and dot segments first.
func splitTemplate(resolved string) (subfolder, baseName string) {
	clean := path.Clean(resolved)
	subfolder = path.Dir(clean)
	if subfolder == "." {
		subfolder = ""
	}
	return subfolder, path.Base(clean)
}

// scanPrefix bounds the candidate listing to keys inside folder. Listing the
// bare folder name would also match sibling folders that share it as a name
// prefix.
func scanPrefix(folder string) string {
	if folder == "" || strings.HasSuffix(folder, "/") {
		return folder
	}
	return folder + "/"
}

// nextCounter returns one past the highest counter embedded in keys eligible
// for baseName, or 1 when none are. Keys are reduced to their final path
// segment before matching, so full keys from a folder listing work directly.
func nextCounter(keys []string, baseName string) int {
	highest := -1
	for _, key := range keys {
		counter, ok := counterFor(path.Base(key), baseName)
		if !ok {
			continue
		}
		if counter > highest {
			highest = counter
		}
	}
	if highest < 0 {
		return 1
	}
	return highest + 1
}

// counterFor extracts the counter embedded in filename. A filename is
// eligible only when it begins with baseName immediately followed by "_";
// the digit run after the separator is the counter. An empty or unparseable
// run yields counter 0 while staying eligible, so malformed names weigh into
// the scan without aborting it.
func counterFor(filename, baseName string) (counter int, eligible bool) {
	if !strings.HasPrefix(filename, baseName) {
		return 0, false
	}
	rest := filename[len(baseName):]
	if rest == "" || rest[0] != '_' {
		return 0, false
	}
	rest = rest[1:]

	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, true
	}
	n, err := strconv.Atoi(rest[:end])
	if err != nil {
		// digit run too long to fit an int
		return 0, true
	}
	return n, true
}
