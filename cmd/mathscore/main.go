// Command mathscore trains, evaluates and serves the student math-score model.
//
//	mathscore ingest  --config mathscore.yaml
//	mathscore train   --config mathscore.yaml
//	mathscore predict --input students.csv
//	mathscore serve   --addr :5000
//	mathscore report
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
