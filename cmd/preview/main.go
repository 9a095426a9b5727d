// Package main provides an offline preview of battle resolution. It runs the
// same rules library the server uses over a snapshot file, without a store.
//
// Create a snapshot from two rosters:
//
//	preview -rosters teams.yaml -seed 42 -out turn1.json
//
// Resolve one turn of it:
//
//	preview -snapshot turn1.json -a '{"action":"move","moveId":"tackle","observedVersion":1}' \
//	        -b '{"action":"switch","observedVersion":1}' -out turn2.json
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/duel/internal/game/battle"
	"github.com/cory-johannsen/duel/internal/game/dice"
	"github.com/cory-johannsen/duel/internal/game/moves"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "preview: %v\n", err)
		os.Exit(1)
	}
}

type rosterFile struct {
	Rosters [2]battle.Roster `yaml:"rosters"`
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	movesDir := fs.String("moves", "content/moves", "path to move YAML definitions directory")
	rostersPath := fs.String("rosters", "", "YAML file with two rosters; creates a new battle")
	seed := fs.Uint("seed", 0, "RNG seed for a new battle (0 = random)")
	snapshotPath := fs.String("snapshot", "", "JSON battle snapshot to resolve")
	choiceA := fs.String("a", "", "JSON choice for side A")
	choiceB := fs.String("b", "", "JSON choice for side B")
	replace := fs.Bool("replace", false, "resolve a replacement round instead of a turn")
	pickA := fs.Int("pick-a", -1, "replacement bench index for side A")
	pickB := fs.Int("pick-b", -1, "replacement bench index for side B")
	outPath := fs.String("out", "", "write the resulting snapshot here")
	debug := fs.Bool("debug", false, "log every RNG draw to stderr")
	now := fs.String("now", "", "RFC 3339 clock used for deadlines (default: current time)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	registry, err := moves.LoadDirectory(*movesDir)
	if err != nil {
		return fmt.Errorf("loading moves: %w", err)
	}
	env := battle.Env{Catalog: registry, Now: time.Now().UTC()}
	if *now != "" {
		t, err := time.Parse(time.RFC3339, *now)
		if err != nil {
			return fmt.Errorf("parsing -now: %w", err)
		}
		env.Now = t.UTC()
	}
	if *debug {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		defer logger.Sync()
		env.StreamFor = func(st *dice.State) dice.Stream { return dice.NewLoggedStream(st, "preview", logger) }
	}

	var res *battle.Result
	switch {
	case *rostersPath != "":
		res, err = create(*rostersPath, uint32(*seed), env)
	case *snapshotPath != "" && *replace:
		res, err = replacement(*snapshotPath, *pickA, *pickB, env)
	case *snapshotPath != "":
		res, err = turn(*snapshotPath, *choiceA, *choiceB, env)
	default:
		return errors.New("one of -rosters or -snapshot is required")
	}
	if err != nil {
		return err
	}

	for _, line := range res.Logs {
		fmt.Fprintln(stdout, line)
	}
	m := res.State.Meta
	fmt.Fprintf(stdout, "-- phase=%s turn=%d version=%d rng=%d/%d\n", m.Phase, m.Turn, m.Version, m.RNG.Seed, m.RNG.Cursor)
	if m.Phase == battle.PhaseEnded {
		fmt.Fprintf(stdout, "-- winner=%q reason=%s\n", m.Winner, m.EndReason)
	}
	fmt.Fprintf(stdout, "-- hash=%s\n", res.Hash)

	if *outPath != "" {
		raw, err := json.MarshalIndent(res.State, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding snapshot: %w", err)
		}
		if err := os.WriteFile(*outPath, raw, 0o644); err != nil {
			return fmt.Errorf("writing snapshot: %w", err)
		}
	}
	return nil
}

func create(path string, seed uint32, env battle.Env) (*battle.Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rosters: %w", err)
	}
	var rf rosterFile
	if err := yaml.Unmarshal(raw, &rf); err != nil {
		return nil, fmt.Errorf("parsing rosters: %w", err)
	}
	rng := dice.State{Seed: seed}
	if seed == 0 {
		rng = dice.NewState(dice.NewCryptoSource())
	}
	return battle.NewBattle(uuid.NewString(), rf.Rosters, rng, env)
}

func loadSnapshot(path string) (*battle.State, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var st battle.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	return &st, nil
}

func turn(path, a, b string, env battle.Env) (*battle.Result, error) {
	st, err := loadSnapshot(path)
	if err != nil {
		return nil, err
	}
	var choices [2]*battle.Choice
	for i, text := range []string{a, b} {
		if text == "" {
			return nil, fmt.Errorf("choice for side %s is required", battle.SideIndex(i).Tag())
		}
		var ch battle.Choice
		if err := json.Unmarshal([]byte(text), &ch); err != nil {
			return nil, fmt.Errorf("parsing choice %s: %w", battle.SideIndex(i).Tag(), err)
		}
		choices[i] = &ch
	}
	return battle.ResolveTurn(st, choices, env)
}

func replacement(path string, a, b int, env battle.Env) (*battle.Result, error) {
	st, err := loadSnapshot(path)
	if err != nil {
		return nil, err
	}
	var picks [2]*int
	if a >= 0 {
		picks[battle.SideA] = &a
	}
	if b >= 0 {
		picks[battle.SideB] = &b
	}
	return battle.ResolveReplacements(st, picks, env)
}
