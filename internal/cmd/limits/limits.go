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

// Package limits implements shmctl limits.
package limits

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/srediag/sysvshm/internal/cmd/cmdutil"
)

func Command() *cli.Command {
	return &cli.Command{
		Name:   "limits",
		Usage:  "print the effective segment limits (ipcs -l)",
		Action: show,
	}
}

func show(c *cli.Context) error {
	l, err := cmdutil.Limits(c)
	if err != nil {
		return err
	}
	w := c.App.Writer
	fmt.Fprintln(w, "------ Shared Memory Limits --------")
	fmt.Fprintf(w, "max number of segments = %d\n", l.MaxSegments)
	fmt.Fprintf(w, "max seg size = %d (%s)\n", l.MaxSegmentSize, cmdutil.FormatBytes(l.MaxSegmentSize))
	fmt.Fprintf(w, "max total shared memory = %d (%s)\n", l.MaxTotalBytes, cmdutil.FormatBytes(l.MaxTotalBytes))
	fmt.Fprintf(w, "min seg size = %d\n", l.MinSegmentSize)
	fmt.Fprintf(w, "max attachments per process = %d\n", l.MaxAttachments)
	return nil
}
