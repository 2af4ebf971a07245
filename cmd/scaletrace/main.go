// Command scaletrace simulates one scale transition and writes a per-tick
// CSV trace with an eased preview column.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/MerchantPug/Pehkui/internal/config"
	"github.com/MerchantPug/Pehkui/internal/trace"
	"github.com/MerchantPug/Pehkui/registry"
	"github.com/MerchantPug/Pehkui/scale"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML configuration file")
		typeName   = flag.String("type", "pehkui:base", "scale type to simulate")
		easingName = flag.String("easing", "pehkui:linear", "easing used for the preview column")
		from       = flag.Float64("from", 1, "starting scale")
		to         = flag.Float64("to", 2, "target scale")
		delay      = flag.Int("delay", int(scale.DefaultScaleTickDelay), "transition length in ticks")
		ticks      = flag.Int("ticks", 0, "ticks to record; zero runs until the transition settles")
		outPath    = flag.String("out", "", "output CSV path; stdout when empty")
	)
	flag.Parse()

	if err := run(*configPath, *typeName, *easingName, float32(*from), float32(*to), int32(*delay), *ticks, *outPath); err != nil {
		log.Fatalf("scaletrace: %v", err)
	}
}

func run(configPath, typeName, easingName string, from, to float32, delay int32, ticks int, outPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	regs := scale.NewRegistries()
	if err := cfg.Catalog.Bootstrap(regs); err != nil {
		return err
	}

	typeID, ok := registry.ParseID(typeName)
	if !ok {
		return fmt.Errorf("invalid scale type %q", typeName)
	}
	typ, ok := regs.Types.Lookup(typeID)
	if !ok {
		return fmt.Errorf("unknown scale type %s", typeID)
	}
	easingID, ok := registry.ParseID(easingName)
	if !ok {
		return fmt.Errorf("invalid easing %q", easingName)
	}

	var out io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", outPath, err)
		}
		defer f.Close()
		out = f
	}

	data := scale.NewBuilder().Type(typ).Build()
	data.SetScale(from)
	data.SetScaleTickDelay(delay)
	rec := trace.NewRecorder(out, regs.Easing(easingID))
	return trace.Transition(rec, data, "trace", typeID.String(), to, ticks)
}
