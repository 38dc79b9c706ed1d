// g2frame is an offline helper: it decodes hex-encoded protocol frames
// (one per argument or stdin line) and prints their header fields and
// payload, validating the checksum trailer.
package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/openg2/g2ctl/internal/protocol/packet"
	"github.com/openg2/g2ctl/internal/protocol/tlv"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [hexframe ...]\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "reads hex frames from arguments, or stdin when none are given")
	}
	flag.Parse()

	frames := flag.Args()
	if len(frames) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				frames = append(frames, line)
			}
		}
		if err := scanner.Err(); err != nil {
			fmt.Fprintf(os.Stderr, "g2frame: %v\n", err)
			os.Exit(1)
		}
	}

	failed := false
	for _, raw := range frames {
		if err := dump(raw); err != nil {
			fmt.Fprintf(os.Stderr, "g2frame: %s: %v\n", raw, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func dump(raw string) error {
	data, err := hex.DecodeString(strings.ReplaceAll(raw, " ", ""))
	if err != nil {
		return fmt.Errorf("decode hex: %w", err)
	}
	p, err := packet.Parse(data)
	if err != nil {
		return err
	}
	fmt.Printf("seq=%d total=%d index=%d service=%02x%02x payload=%d bytes\n",
		p.Sequence, p.TotalCount, p.PacketIndex, p.Service.Hi, p.Service.Lo, len(p.Payload))
	fmt.Printf("  %s\n", hex.EncodeToString(p.Payload))
	dumpFields(p.Payload)
	return nil
}

// dumpFields decodes the payload as tag/length/value fields. Not every
// payload follows the convention, so decode failures are silent.
func dumpFields(payload []byte) {
	fields, err := tlv.Parse(payload)
	if err != nil || len(fields) == 0 {
		return
	}
	for _, f := range fields {
		switch f.Wire {
		case tlv.WireVarint:
			fmt.Printf("    field %d = %d\n", f.Number, f.Varint)
		case tlv.WireFixed32:
			fmt.Printf("    field %d = fixed32 %#08x\n", f.Number, f.Fixed32)
		case tlv.WireBytes:
			fmt.Printf("    field %d = %q\n", f.Number, f.Bytes)
		}
	}
}
