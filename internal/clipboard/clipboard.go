package clipboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

var ErrToolNotFound = errors.New("clipboard tool not found")

type Command struct {
	Path string
	Args []string
}

// candidates are tried in order per platform.
var candidates = map[string][]Command{
	"darwin": {{Path: "pbcopy"}},
	"linux": {
		{Path: "wl-copy"},
		{Path: "xclip", Args: []string{"-selection", "clipboard"}},
		{Path: "xsel", Args: []string{"--clipboard", "--input"}},
	},
	"windows": {{Path: "clip.exe"}},
}

func SelectCommand(goos string, lookPath func(string) (string, error)) (Command, error) {
	for _, c := range candidates[goos] {
		path, err := lookPath(c.Path)
		if err != nil {
			continue
		}
		return Command{Path: path, Args: c.Args}, nil
	}
	return Command{}, ErrToolNotFound
}

// Copy puts text on the system clipboard. The tool's output is not captured:
// wl-copy and xclip leave a child serving the selection, and it would hold
// captured pipes open past Wait.
func Copy(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("nothing to copy")
	}
	cmdDef, err := SelectCommand(runtime.GOOS, exec.LookPath)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, cmdDef.Path, cmdDef.Args...)
	cmd.WaitDelay = time.Second
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("clipboard stdin: %w", err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start clipboard command: %w", err)
	}

	if _, err := io.WriteString(stdin, text); err != nil {
		_ = stdin.Close()
		_ = cmd.Wait()
		return fmt.Errorf("write clipboard data: %w", err)
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("clipboard command failed: %w", err)
	}
	return nil
}
