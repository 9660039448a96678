package terminal

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

// Display handles line-oriented terminal output
type Display struct {
	out   io.Writer
	color bool

	mu          sync.Mutex
	spinnerDone chan struct{}
	spinnerWG   sync.WaitGroup
}

// NewDisplay creates a display writing to out. Colors are enabled only when
// out is a terminal.
func NewDisplay(out io.Writer) *Display {
	color := false
	if f, ok := out.(*os.File); ok {
		color = IsTerminalFile(f)
	}
	return &Display{out: out, color: color}
}

// Interactive reports whether the display writes to a terminal.
func (d *Display) Interactive() bool {
	return d.color
}

// Color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

func (d *Display) paint(color, text string) string {
	if !d.color {
		return text
	}
	return color + text + colorReset
}

func (d *Display) printf(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, format, args...)
}

// PrintWelcome displays the banner for an interactive session
func (d *Display) PrintWelcome(apiURL string) {
	d.printf("%s\n", d.paint(colorCyan, "coursegen - AI course authoring"))
	d.printf("%s\n", d.paint(colorGray, "Backend: "+apiURL))
	d.printf("%s\n\n", d.paint(colorGray, "Commands: /tab <name> | /stop | /history | /help | /exit"))
}

// PrintGoodbye displays the goodbye message
func (d *Display) PrintGoodbye() {
	d.printf("\n%s\n", d.paint(colorCyan, "Goodbye!"))
}

// PrintError displays an error message
func (d *Display) PrintError(err error) {
	d.printf("%s\n", d.paint(colorRed, fmt.Sprintf("✗ Error: %v", err)))
}

// PrintInfo displays an info message
func (d *Display) PrintInfo(msg string) {
	d.printf("%s\n", d.paint(colorCyan, "ℹ "+msg))
}

// PrintWarning displays a warning message
func (d *Display) PrintWarning(msg string) {
	d.printf("%s\n", d.paint(colorYellow, "⚠ "+msg))
}

// PrintSuccess displays a success message
func (d *Display) PrintSuccess(msg string) {
	d.printf("%s\n", d.paint(colorGreen, "✓ "+msg))
}

// PrintPrompt displays the input prompt for tab
func (d *Display) PrintPrompt(tab string) {
	d.printf("\n%s ", d.paint(colorGreen, tab+" >"))
}

// ShowSpinner animates msg until StopSpinner is called. Starting a new
// spinner stops the previous one.
func (d *Display) ShowSpinner(msg string) {
	d.StopSpinner()

	done := make(chan struct{})
	d.mu.Lock()
	d.spinnerDone = done
	d.mu.Unlock()

	d.spinnerWG.Add(1)
	go func() {
		defer d.spinnerWG.Done()
		spinnerChars := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i = (i + 1) % len(spinnerChars) {
			d.printf("\r%s", d.paint(colorCyan, spinnerChars[i]+" "+msg))
			select {
			case <-done:
				d.printf("\r\033[2K\r")
				return
			case <-ticker.C:
			}
		}
	}()
}

// StopSpinner stops the active spinner and waits for its line to clear
func (d *Display) StopSpinner() {
	d.mu.Lock()
	done := d.spinnerDone
	d.spinnerDone = nil
	d.mu.Unlock()
	if done == nil {
		return
	}
	close(done)
	d.spinnerWG.Wait()
}

// Cleanup ensures the display is in a good state before exit
func (d *Display) Cleanup() {
	d.StopSpinner()
}

// IsTerminalFile checks if f is a terminal
func IsTerminalFile(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
