package terminal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Reader reads REPL lines
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps in for line reading.
func NewReader(in io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(in)}
}

// ReadLine reads one trimmed line. A final line without newline is returned
// together with io.EOF.
func (r *Reader) ReadLine() (string, error) {
	input, err := r.r.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}
	return strings.TrimSpace(input), err
}

// Command is a parsed slash command
type Command struct {
	Name string
	Arg  string
}

// ParseCommand splits "/name arg" lines. It reports false for plain input.
func ParseCommand(line string) (Command, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") || len(line) == 1 {
		return Command{}, false
	}
	name, arg, _ := strings.Cut(line[1:], " ")
	return Command{Name: strings.ToLower(name), Arg: strings.TrimSpace(arg)}, true
}

// ExtractMentions removes @path references from query and returns them.
func ExtractMentions(query string) (string, []string) {
	var kept, paths []string
	for _, word := range strings.Fields(query) {
		if strings.HasPrefix(word, "@") && len(word) > 1 {
			paths = append(paths, strings.Trim(strings.TrimPrefix(word, "@"), "\"'"))
			continue
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, " "), paths
}

// ReadMentions loads every mentioned file relative to workingDir and joins
// their contents, each under a "# name" header.
func ReadMentions(workingDir string, paths []string) (string, error) {
	var b strings.Builder
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(workingDir, p)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", p, err)
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "# %s\n%s", filepath.Base(p), data)
	}
	return b.String(), nil
}

// FindMatchingFiles searches for files matching the partial path after @
func FindMatchingFiles(workingDir string, partial string) []string {
	matches := []string{}

	searchDir := workingDir
	pattern := strings.ToLower(partial)
	if strings.Contains(partial, "/") {
		dir, file := filepath.Split(partial)
		searchDir = filepath.Join(workingDir, dir)
		pattern = strings.ToLower(file)
	}

	_ = filepath.Walk(searchDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		relPath, err := filepath.Rel(workingDir, path)
		if err != nil || relPath == "." {
			return nil
		}
		if strings.HasPrefix(info.Name(), ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() && len(matches) < 100 {
			if pattern == "" || strings.Contains(strings.ToLower(relPath), pattern) {
				matches = append(matches, relPath)
			}
		}
		// Limit depth
		if info.IsDir() && strings.Count(relPath, string(filepath.Separator)) >= 4 {
			return filepath.SkipDir
		}
		return nil
	})
	return matches
}

// ShowFileSuggestions prints up to ten matches for every @ mention in query
func ShowFileSuggestions(w io.Writer, workingDir string, query string) {
	_, partials := ExtractMentions(query)
	for _, partial := range partials {
		matches := FindMatchingFiles(workingDir, partial)
		if len(matches) == 0 {
			continue
		}
		fmt.Fprintf(w, "File suggestions for '@%s':\n", partial)
		for i, match := range matches {
			if i == 10 {
				break
			}
			fmt.Fprintf(w, "   @%s\n", match)
		}
	}
}
