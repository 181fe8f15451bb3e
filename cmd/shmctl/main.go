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

package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/srediag/sysvshm/internal/cmd/bench"
	"github.com/srediag/sysvshm/internal/cmd/cmdutil"
	"github.com/srediag/sysvshm/internal/cmd/limits"
	"github.com/srediag/sysvshm/internal/cmd/serve"
)

var version = "dev"

var commands = []*cli.Command{
	limits.Command(),
	bench.Command(),
	serve.Command(),
}

func main() {
	run(&cli.App{
		Name:                 "shmctl",
		Usage:                "inspect and exercise System V shared memory segments",
		UsageText:            "shmctl [global options] command [command options]",
		Version:              version,
		EnableBashCompletion: true,
		Flags:                cmdutil.Flags,
		Commands:             commands,
	})
}

func run(app *cli.App) {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "shmctl:", err)
		os.Exit(1)
	}
}
