package proc

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func sh(script string) Command {
	return Command{Name: "sh", Args: []string{"-c", script}}
}

func TestRun_CollectsBothStreams(t *testing.T) {
	var stdout, stderr []string
	code, err := Run(t.Context(), sh("echo one; echo two >&2; printf three"), func(l Line) {
		if l.Stream == Stderr {
			stderr = append(stderr, l.Text)
			return
		}
		stdout = append(stdout, l.Text)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if strings.Join(stdout, ",") != "one,three" {
		t.Errorf("stdout = %v", stdout)
	}
	if strings.Join(stderr, ",") != "two" {
		t.Errorf("stderr = %v", stderr)
	}
}

func TestRun_NonZeroExitIsNotAnError(t *testing.T) {
	code, err := Run(t.Context(), sh("exit 3"), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
}

func TestStart_MissingBinary(t *testing.T) {
	_, err := Start(t.Context(), Command{Name: "definitely-not-a-real-binary-xyz"})
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func TestCancel_KillsProcess(t *testing.T) {
	s, err := Start(context.Background(), sh("echo started; exec sleep 30"))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	first := <-s.Lines()
	if first.Text != "started" {
		t.Fatalf("first line = %q", first.Text)
	}

	begin := time.Now()
	s.Cancel()
	for range s.Lines() {
	}
	_, err = s.Wait()
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Wait error = %v, want context.Canceled", err)
	}
	if time.Since(begin) > 10*time.Second {
		t.Error("cancel did not stop the process promptly")
	}
}

func TestOutput_Combined(t *testing.T) {
	out, code, err := Output(t.Context(), sh("echo a; echo b"))
	if err != nil || code != 0 {
		t.Fatalf("Output: code=%d err=%v", code, err)
	}
	if out != "a\nb\n" {
		t.Errorf("output = %q", out)
	}
}

func TestCommand_Env(t *testing.T) {
	c := sh(`echo "$XP_TEST_VALUE"`)
	c.Env = []string{"XP_TEST_VALUE=hello"}
	out, _, err := Output(t.Context(), c)
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if strings.TrimSpace(out) != "hello" {
		t.Errorf("output = %q", out)
	}
}

func TestCommand_String(t *testing.T) {
	c := Command{Name: "docker", Args: []string{"build", "-t", "x"}}
	if c.String() != "docker build -t x" {
		t.Errorf("String() = %q", c.String())
	}
}
