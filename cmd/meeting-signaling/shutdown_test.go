package main

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type shutdownStep struct {
	name  string
	steps *[]string
	err   error
}

func (s shutdownStep) Close() {
	*s.steps = append(*s.steps, s.name)
}

func (s shutdownStep) Shutdown(context.Context) error {
	*s.steps = append(*s.steps, s.name)
	return s.err
}

type journalStep struct {
	steps *[]string
	err   error
}

func (j journalStep) Close() error {
	*j.steps = append(*j.steps, "journal")
	return j.err
}

func TestShutdownOrder(t *testing.T) {
	var steps []string
	logger, _ := newRecordingLogger()

	shutdown(context.Background(), logger,
		shutdownStep{name: "relay", steps: &steps},
		shutdownStep{name: "http", steps: &steps},
		journalStep{steps: &steps})

	if got := strings.Join(steps, ","); got != "relay,http,journal" {
		t.Fatalf("order=%q, want relay,http,journal", got)
	}
}

func TestShutdownWithoutServerOrJournal(t *testing.T) {
	var steps []string
	logger, _ := newRecordingLogger()

	shutdown(context.Background(), logger, shutdownStep{name: "relay", steps: &steps}, nil, nil)

	if got := strings.Join(steps, ","); got != "relay" {
		t.Fatalf("order=%q, want relay", got)
	}
}

func TestShutdownLogsFailuresAndContinues(t *testing.T) {
	var steps []string
	logger, records := newRecordingLogger()

	shutdown(context.Background(), logger,
		shutdownStep{name: "relay", steps: &steps},
		shutdownStep{name: "http", steps: &steps, err: errors.New("deadline")},
		journalStep{steps: &steps, err: errors.New("disk")})

	if got := strings.Join(steps, ","); got != "relay,http,journal" {
		t.Fatalf("order=%q, want relay,http,journal", got)
	}
	var msgs []string
	for _, r := range records() {
		msgs = append(msgs, r.msg)
	}
	if got := strings.Join(msgs, ","); got != "http server shutdown failed,room journal close failed" {
		t.Fatalf("logged %q", got)
	}
}
