package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/quillathe/numgrade"
)

const (
	historyFile = ".numgrade_history"
	prompt      = "answer> "
)

func red(s string) string   { return "\x1b[31m" + s + "\x1b[0m" }
func green(s string) string { return "\x1b[32m" + s + "\x1b[0m" }

// repl grades answers interactively until EOF or :quit.
func repl(g *numgrade.Grader) error {
	fmt.Println("numgrade interactive session. Ctrl+D or :quit exits.")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	for {
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			fmt.Println()
			return nil
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			return err
		}
		answer := strings.TrimSpace(line)
		if answer == "" {
			continue
		}
		if answer == ":quit" {
			return nil
		}
		ln.AppendHistory(answer)

		res, err := g.Grade(answer)
		if err != nil {
			fmt.Fprintln(os.Stderr, red(err.Error()))
			continue
		}
		printColored(res)
	}
}

func printColored(res numgrade.GradeResult) {
	switch {
	case res.Matched && res.Credit == 1 && res.Message == "":
		fmt.Println(green("correct"))
	case res.Matched:
		msg := fmt.Sprintf("%s (%.0f%% credit)", res.Kind, res.Credit*100)
		if res.Message != "" {
			msg += ": " + res.Message
		}
		fmt.Println(green(msg))
	default:
		msg := string(res.Kind)
		if res.Message != "" {
			msg += ": " + res.Message
		}
		fmt.Println(red(msg))
	}
}
