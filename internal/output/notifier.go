package output

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tanq16/kickstart/internal/installer"
)

// ConsoleNotifier shows notifications on a terminal and reads the answer to
// yes/no questions from in.
type ConsoleNotifier struct {
	in  *bufio.Reader
	out io.Writer
}

func NewConsoleNotifier(in io.Reader, out io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{in: bufio.NewReader(in), out: out}
}

// Notify prints the message under title. An OK notification returns
// immediately; a yes/no question keeps asking until it gets an answer and
// treats end of input as no.
func (n *ConsoleNotifier) Notify(message, title string, style installer.ButtonStyle) (installer.Choice, error) {
	fmt.Fprintln(n.out)
	fmt.Fprintln(n.out, headerStyle.Render(title))
	for _, line := range wrapText(message, terminalWidth(n.out)-4) {
		fmt.Fprintf(n.out, "  %s\n", line)
	}
	if style != installer.ButtonYesNo {
		fmt.Fprintln(n.out)
		return installer.ChoiceOK, nil
	}

	for {
		fmt.Fprintf(n.out, "  %s ", infoStyle.Render(StyleSymbols["arrow"]+" Continue? [y/n]:"))
		answer, err := n.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return installer.ChoiceNo, fmt.Errorf("error reading answer: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return installer.ChoiceYes, nil
		case "n", "no":
			return installer.ChoiceNo, nil
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(n.out)
			return installer.ChoiceNo, nil
		}
		fmt.Fprintln(n.out, "  "+warningStyle.Render("Please answer y or n"))
	}
}
