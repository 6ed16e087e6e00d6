// Package seed creates demo encounter sheets through the SheetService.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	entrypoint "github.com/louisbranch/initiative/internal/platform/cmd"
	platformgrpc "github.com/louisbranch/initiative/internal/platform/grpc"
	platformid "github.com/louisbranch/initiative/internal/platform/id"
	"github.com/louisbranch/initiative/internal/platform/timeouts"
	sheetservice "github.com/louisbranch/initiative/internal/services/encounter/api/grpc/sheet"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/combatant"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/dice"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/sheet"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/turnorder"
)

// Config holds seed command configuration.
type Config struct {
	GRPCAddr   string `env:"SEED_GRPC_ADDR" envDefault:"localhost:8091"`
	SheetID    string
	CampaignID string
	// File, when set, is a JSON sheet created as-is instead of the demo.
	File    string
	Seed    int64
	Verbose bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "SheetService address")
	fs.StringVar(&cfg.SheetID, "sheet-id", "", "sheet id (default: generated)")
	fs.StringVar(&cfg.CampaignID, "campaign", "", "campaign id the sheet belongs to")
	fs.StringVar(&cfg.File, "file", "", "create the sheet from this JSON file")
	fs.Int64Var(&cfg.Seed, "seed", 0, "random seed for reproducibility (0 = random)")
	fs.BoolVar(&cfg.Verbose, "v", false, "verbose output")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the sheet and creates it on the configured SheetService.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	record, err := buildSheet(cfg)
	if err != nil {
		return err
	}

	logf := func(string, ...any) {}
	if cfg.Verbose {
		logf = func(format string, args ...any) {
			fmt.Fprintf(out, format+"\n", args...)
		}
	}
	conn, err := platformgrpc.DialWithHealth(ctx, cfg.GRPCAddr, sheetservice.ServiceName, timeouts.GRPCDial, logf)
	if err != nil {
		return fmt.Errorf("dial sheet service: %w", err)
	}
	defer conn.Close()

	created, err := sheetservice.NewRemoteStore(conn).Create(ctx, record)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	fmt.Fprintf(out, "created sheet %s with %d combatants\n", created.ID, len(created.Rows))
	if cfg.Verbose {
		for _, row := range created.Rows {
			fmt.Fprintf(out, "  %2d  %-10s %-8s init %2d\n", row.Index, row.Name, row.Type, row.Initiative)
		}
	}
	return nil
}

func buildSheet(cfg Config) (sheet.Sheet, error) {
	sheetID := strings.TrimSpace(cfg.SheetID)
	if cfg.File != "" {
		data, err := os.ReadFile(cfg.File)
		if err != nil {
			return sheet.Sheet{}, fmt.Errorf("read sheet file: %w", err)
		}
		var record sheet.Sheet
		if err := json.Unmarshal(data, &record); err != nil {
			return sheet.Sheet{}, fmt.Errorf("decode sheet file: %w", err)
		}
		if sheetID != "" {
			record.ID = sheetID
		}
		if strings.TrimSpace(record.ID) == "" {
			return sheet.Sheet{}, errors.New("sheet file has no id; pass -sheet-id")
		}
		return record.Normalize(), nil
	}

	if sheetID == "" {
		generated, err := platformid.NewID()
		if err != nil {
			return sheet.Sheet{}, err
		}
		sheetID = generated
	}
	seed := cfg.Seed
	if seed == 0 {
		generated, err := dice.NewSeed()
		if err != nil {
			return sheet.Sheet{}, err
		}
		seed = generated
	}
	return DemoSheet(sheetID, cfg.CampaignID, dice.NewRoller(seed))
}

type demoCombatant struct {
	name     string
	kind     combatant.Kind
	ac       int
	health   int
	hitDice  string
	modifier int
}

var demoParty = []demoCombatant{
	{name: "Aria", kind: combatant.KindPlayer, ac: 16, health: 24, modifier: 3},
	{name: "Brom", kind: combatant.KindPlayer, ac: 18, health: 31},
	{name: "Goblin 1", kind: combatant.KindMonster, ac: 15, hitDice: "2d6", modifier: 2},
	{name: "Goblin 2", kind: combatant.KindMonster, ac: 15, hitDice: "2d6", modifier: 2},
	{name: "Wolf", kind: combatant.KindSummon, ac: 13, hitDice: "2d8", modifier: 2},
	{name: "Collapsing Cave", kind: combatant.KindLair},
}

// DemoSheet builds a small encounter with monster health and initiative
// rolled by roller. Lair rows keep the fixed lair initiative of 20.
func DemoSheet(id, campaignID string, roller *dice.Roller) (sheet.Sheet, error) {
	record := sheet.New(id, campaignID)
	for _, demo := range demoParty {
		row := combatant.New("", demo.name, demo.kind)
		if demo.kind == combatant.KindLair {
			row.Initiative = 20
		} else {
			row.InitiativeModifier = combatant.Int(demo.modifier)
			row.AC = combatant.Stat{Value: combatant.Int(demo.ac), Max: combatant.Int(demo.ac)}
			health := demo.health
			if demo.hitDice != "" {
				spec, err := dice.Parse(demo.hitDice)
				if err != nil {
					return sheet.Sheet{}, err
				}
				result, err := roller.Roll([]dice.Spec{spec})
				if err != nil {
					return sheet.Sheet{}, err
				}
				health = result.Total
			}
			row.Health = combatant.Stat{Value: combatant.Int(health), Max: combatant.Int(health)}
		}
		next, err := record.AddCombatant(row)
		if err != nil {
			return sheet.Sheet{}, err
		}
		record = next
	}
	record.Rows = turnorder.IndexCorrect(turnorder.RollAll(record.Rows, roller))
	return record, nil
}
