package main

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	psisi "github.com/dvbtools/go-psisi"
)

var (
	flagProfile string
	flagPDS     string
	flagOutput  string
)

func main() {
	root := &cobra.Command{
		Use:           "psisi",
		Short:         "Inspect and build MPEG/DVB signalization sections",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagProfile, "profile", "", "write a profile to ./ (cpu or mem)")
	root.PersistentFlags().StringVar(&flagPDS, "pds", "", "default private data specifier (e.g. 0x28)")

	dump := &cobra.Command{
		Use:   "dump <sections-file>",
		Short: "Parse binary sections and print their XML form",
		Args:  cobra.ExactArgs(1),
		RunE:  runDump,
	}

	compile := &cobra.Command{
		Use:   "compile <table-xml-file>",
		Short: "Build binary sections from an XML table",
		Args:  cobra.ExactArgs(1),
		RunE:  runCompile,
	}
	compile.Flags().StringVarP(&flagOutput, "output", "o", "", "output file (hex on stdout when omitted)")

	root.AddCommand(dump, compile)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "psisi: %v\n", err)
		os.Exit(1)
	}
}

func signalContext() (*psisi.SignalContext, error) {
	ctx := &psisi.SignalContext{Standards: psisi.StandardsMPEG | psisi.StandardsDVB, CASID: psisi.CASIDNull}
	if flagPDS != "" {
		pds, err := strconv.ParseUint(flagPDS, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid --pds value %q: %w", flagPDS, err)
		}
		ctx.PDS = psisi.PDS(pds)
	}
	return ctx, nil
}

func startProfiling() interface{ Stop() } {
	switch flagProfile {
	case "cpu":
		return profile.Start(profile.CPUProfile, profile.ProfilePath("."))
	case "mem":
		return profile.Start(profile.MemProfile, profile.ProfilePath("."))
	default:
		return nil
	}
}

func runDump(_ *cobra.Command, args []string) error {
	if p := startProfiling(); p != nil {
		defer p.Stop()
	}
	ctx, err := signalContext()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	for offset := 0; offset < len(data); {
		if data[offset] == 0xff {
			// Trailing stuffing, the rest of the file carries no section.
			break
		}
		if offset+3 > len(data) {
			return fmt.Errorf("truncated section header at offset %d", offset)
		}
		end := offset + 3 + int(binary.BigEndian.Uint16(data[offset+1:])&0xfff)
		if end > len(data) {
			return fmt.Errorf("truncated section at offset %d", offset)
		}
		section, err := psisi.ParseSection(data[offset:end])
		if err != nil {
			return err
		}
		if err := dumpSection(ctx, section); err != nil {
			return err
		}
		offset = end
	}
	return nil
}

func dumpSection(ctx *psisi.SignalContext, section *psisi.Section) error {
	var el *psisi.XMLElement
	switch section.TableID {
	case psisi.TableIDPMT:
		pmt, err := psisi.DeserializePMT(section)
		if err != nil {
			return err
		}
		el = pmt.ToXML(ctx)
	default:
		el = psisi.NewXMLElement("generic_table")
		el.SetAttr("table_id", fmt.Sprintf("0x%02X", uint8(section.TableID)))
		el.SetAttr("table_id_ext", fmt.Sprintf("0x%04X", section.TableIDExt))
		el.SetAttr("version", fmt.Sprintf("%d", section.Version))
		el.SetHexText(section.Payload)
	}
	out, err := xml.MarshalIndent(el, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runCompile(_ *cobra.Command, args []string) error {
	if p := startProfiling(); p != nil {
		defer p.Stop()
	}
	ctx, err := signalContext()
	if err != nil {
		return err
	}
	input, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	var el psisi.XMLElement
	if err := xml.Unmarshal(input, &el); err != nil {
		return err
	}
	if el.Name() != "PMT" {
		return fmt.Errorf("unsupported table <%s>, only <PMT> can be compiled", el.Name())
	}

	pmt := psisi.NewPMT(0)
	if err := pmt.FromXML(ctx, &el); err != nil {
		return err
	}
	section, err := pmt.Serialize()
	if err != nil {
		return err
	}
	bin, err := section.Serialize()
	if err != nil {
		return err
	}

	if flagOutput != "" {
		return os.WriteFile(flagOutput, bin, 0o644)
	}
	fmt.Println(hex.EncodeToString(bin))
	return nil
}
