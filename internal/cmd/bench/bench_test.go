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

package bench

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/srediag/sysvshm/internal/cmd/cmdutil"
)

func TestBench(t *testing.T) {
	var out bytes.Buffer
	app := &cli.App{
		Name:     "shmctl",
		Flags:    cmdutil.Flags,
		Commands: []*cli.Command{Command()},
		Writer:   &out,
	}
	require.NoError(t, app.Run([]string{"shmctl", "--loglvl", "none", "bench",
		"--procs", "4", "--rounds", "20", "--keys", "4", "--remove-every", "0", "--ipcs"}))

	s := out.String()
	assert.Contains(t, s, "ops=")
	assert.Contains(t, s, "panics=0")
	assert.Contains(t, s, "segments=4")
	assert.Contains(t, s, "shmid")
}
