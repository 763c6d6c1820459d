package term

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
	"golang.org/x/xerrors"
)

// Terminal обеспечивает интерактивный ввод токена и подтверждений.
type Terminal struct {
	in           *bufio.Reader
	out          io.Writer
	stdinfd      int
	isTerminal   func(fd int) bool
	readPassword func(fd int) ([]byte, error)
}

// NewTerminal создает новый экземпляр Terminal.
func NewTerminal() *Terminal {
	return &Terminal{
		in:           bufio.NewReader(os.Stdin),
		out:          os.Stdout,
		stdinfd:      int(os.Stdin.Fd()),
		isTerminal:   term.IsTerminal,
		readPassword: term.ReadPassword,
	}
}

// IsInteractive сообщает, подключен ли stdin к терминалу.
func (t *Terminal) IsInteractive() bool {
	return t.isTerminal(t.stdinfd)
}

// Token запрашивает токен Discord без эха.
func (t *Terminal) Token() (string, error) {
	if !t.IsInteractive() {
		return "", xerrors.New("discord token is not configured and stdin is not a terminal")
	}

	fmt.Fprint(t.out, "Enter Discord token: ")
	raw, err := t.readPassword(t.stdinfd)
	fmt.Fprintln(t.out) // Новая строка после ввода
	if err != nil {
		return "", xerrors.Errorf("failed to read token: %w", err)
	}

	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", xerrors.New("empty token")
	}
	return token, nil
}

// Confirm задает вопрос да/нет. Пустой ответ означает "нет".
func (t *Terminal) Confirm(question string) (bool, error) {
	fmt.Fprintf(t.out, "%s [y/N]: ", question)
	answer, err := t.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, xerrors.Errorf("failed to read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes", "д", "да":
		return true, nil
	}
	return false, nil
}
