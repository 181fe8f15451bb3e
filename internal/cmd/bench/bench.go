/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package bench implements shmctl bench.
package bench

import (
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/srediag/sysvshm/internal/cmd/cmdutil"
	"github.com/srediag/sysvshm/pkg/shm"
	"github.com/srediag/sysvshm/pkg/workload"
)

var flags = []cli.Flag{
	&cli.IntFlag{Name: "workers", Value: 8, Usage: "worker pool size"},
	&cli.IntFlag{Name: "procs", Value: 64, Usage: "simulated processes"},
	&cli.IntFlag{Name: "rounds", Value: 1000, Usage: "get/attach/detach cycles per process"},
	&cli.IntFlag{Name: "keys", Value: 32, Usage: "size of the shared key space"},
	&cli.Uint64Flag{Name: "size", Value: 4096, Usage: "segment size in `bytes`"},
	&cli.IntFlag{Name: "fork-every", Value: 10, Usage: "fork a child every `n` rounds, 0 disables"},
	&cli.IntFlag{Name: "remove-every", Value: 7, Usage: "remove the segment every `n` rounds, 0 disables"},
	&cli.BoolFlag{Name: "ipcs", Usage: "print the segment table afterwards"},
}

func Command() *cli.Command {
	return &cli.Command{
		Name:   "bench",
		Usage:  "churn an in-process segment manager",
		Flags:  flags,
		Action: bench,
	}
}

func bench(c *cli.Context) error {
	log := cmdutil.Logger(c, "bench")
	defer func() { _ = log.Sync() }()

	limits, err := cmdutil.Limits(c)
	if err != nil {
		return err
	}
	mgr, err := shm.New(limits, shm.WithLogger(log))
	if err != nil {
		return fmt.Errorf("manager: %w", err)
	}
	defer func() {
		if err := mgr.Close(c.Context); err != nil {
			log.Error("close manager", zap.Error(err))
		}
	}()

	rep, err := workload.Run(c.Context, mgr, workload.Options{
		Workers:     c.Int("workers"),
		Procs:       c.Int("procs"),
		Rounds:      c.Int("rounds"),
		Keys:        c.Int("keys"),
		Size:        c.Uint64("size"),
		ForkEvery:   c.Int("fork-every"),
		RemoveEvery: c.Int("remove-every"),
		Seed:        1,
		Logger:      log,
	})
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "ops=%d failed=%d panics=%d duration=%s rate=%.0f/s\n",
		rep.Ops, rep.Failed(), rep.Panics, rep.Duration, float64(rep.Ops)/rep.Duration.Seconds())
	kinds := make([]shm.Kind, 0, len(rep.Failures))
	for k := range rep.Failures {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-12s %-28s %d\n", k.String(), k.Error(), rep.Failures[k])
	}
	fmt.Fprintf(w, "segments=%d committed=%s\n", rep.Usage.Segments, cmdutil.FormatBytes(rep.Usage.Committed))
	if c.Bool("ipcs") {
		return shm.FormatSegments(w, mgr.Segments())
	}
	return nil
}
