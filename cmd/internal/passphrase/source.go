package passphrase

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// ErrMismatch is returned when the confirmation entry differs.
var ErrMismatch = errors.New("passphrases do not match")

// Source resolves a keystore passphrase once, from the environment when the
// variable is set and from the terminal otherwise.
type Source struct {
	envVar  string
	prompt  string
	confirm bool

	// readSecret reads one line without echo. Tests replace it.
	readSecret func() ([]byte, error)
	isTerminal func() bool
	out        io.Writer

	once  sync.Once
	value string
	err   error
}

// NewSource returns a source that reads envVar before prompting.
func NewSource(envVar string) *Source {
	fd := int(os.Stdin.Fd())
	return &Source{
		envVar:     strings.TrimSpace(envVar),
		prompt:     "Enter keystore passphrase: ",
		readSecret: func() ([]byte, error) { return term.ReadPassword(fd) },
		isTerminal: func() bool { return term.IsTerminal(fd) },
		out:        os.Stderr,
	}
}

// WithConfirmation makes interactive entry ask twice. Used when a keystore
// is created.
func (s *Source) WithConfirmation() *Source {
	s.confirm = true
	return s
}

// Get returns the passphrase, resolving it on the first call.
func (s *Source) Get() (string, error) {
	s.once.Do(func() { s.value, s.err = s.resolve() })
	return s.value, s.err
}

func (s *Source) resolve() (string, error) {
	if s.envVar != "" {
		if value, ok := os.LookupEnv(s.envVar); ok {
			if strings.TrimSpace(value) == "" {
				return "", fmt.Errorf("%s is set but empty", s.envVar)
			}
			return value, nil
		}
	}
	if !s.isTerminal() {
		if s.envVar != "" {
			return "", fmt.Errorf("keystore passphrase required; set %s or run interactively", s.envVar)
		}
		return "", errors.New("keystore passphrase required and no terminal available")
	}

	first, err := s.ask(s.prompt)
	if err != nil {
		return "", err
	}
	if s.confirm {
		second, err := s.ask("Repeat passphrase: ")
		if err != nil {
			return "", err
		}
		if second != first {
			return "", ErrMismatch
		}
	}
	return first, nil
}

func (s *Source) ask(prompt string) (string, error) {
	fmt.Fprint(s.out, prompt)
	raw, err := s.readSecret()
	fmt.Fprintln(s.out)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	value := string(raw)
	if strings.TrimSpace(value) == "" {
		return "", errors.New("keystore passphrase cannot be empty")
	}
	return value, nil
}
