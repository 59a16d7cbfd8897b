package main

import (
	"context"
	"fmt"

	"github.com/eiannone/keyboard"
)

// listenForCancel calls cancel when q, Esc or Ctrl+C is pressed. The
// returned function restores the terminal.
func listenForCancel(cancel context.CancelFunc) (func(), error) {
	keys, err := keyboard.GetKeys(10)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case ev, ok := <-keys:
				if !ok || ev.Err != nil {
					return
				}
				if isCancelKey(ev) {
					fmt.Println("\nStopping after the reports in flight...")
					cancel()
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		_ = keyboard.Close()
	}, nil
}

func isCancelKey(ev keyboard.KeyEvent) bool {
	switch ev.Key {
	case keyboard.KeyEsc, keyboard.KeyCtrlC:
		return true
	}
	return ev.Rune == 'q' || ev.Rune == 'Q'
}
