package scanner

import (
	"regexp"
	"strings"

	"github.com/scandock/scandock/internal/models"
)

// deviceLine matches the toolchain's listing format:
//
//	device `pixma:04A91234_ABCDE' is a CANON Canon PIXMA MG5500 multi-function peripheral
var deviceLine = regexp.MustCompile("device `(.+?)' is a (.+)$")

// LineResult is the outcome of parsing one listing line. Either Scanner is
// populated and Parsed is true, or Raw carries the line that did not match the
// known format. Unrecognized lines are reported, never dropped silently.
type LineResult struct {
	Scanner models.Scanner
	Parsed  bool
	Raw     string
}

// ParseListing tokenizes device-listing output line by line. Only lines that
// mention a device are considered; everything else (banners, warnings) is
// skipped outright.
func ParseListing(output string) []LineResult {
	var results []LineResult
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(line, "device") {
			continue
		}

		m := deviceLine.FindStringSubmatch(line)
		if m == nil {
			results = append(results, LineResult{Raw: line})
			continue
		}

		results = append(results, LineResult{
			Scanner: scannerFromListing(m[1], m[2]),
			Parsed:  true,
		})
	}
	return results
}

// Devices extracts the successfully parsed scanners from results.
func Devices(results []LineResult) []models.Scanner {
	var devices []models.Scanner
	for _, r := range results {
		if r.Parsed {
			devices = append(devices, r.Scanner)
		}
	}
	return devices
}

func scannerFromListing(device, description string) models.Scanner {
	tokens := strings.Fields(description)

	var vendor, model string
	if len(tokens) > 0 {
		vendor = tokens[0]
		rest := tokens[1:]
		// Some backends repeat the vendor at the start of the model string
		// ("CANON Canon PIXMA ..."); drop the duplicate.
		if len(rest) > 0 && strings.EqualFold(rest[0], vendor) {
			rest = rest[1:]
		}
		model = strings.Join(rest, " ")
	}

	return models.Scanner{
		Device:    device,
		Vendor:    vendor,
		Model:     model,
		Kind:      classifyKind(description),
		Available: true,
	}
}

func classifyKind(description string) models.ScannerKind {
	desc := strings.ToLower(description)
	switch {
	case strings.Contains(desc, "flatbed"):
		return models.KindFlatbed
	case strings.Contains(desc, "sheet"), strings.Contains(desc, "feeder"):
		return models.KindSheetFed
	case strings.Contains(desc, "multi-function"):
		return models.KindMultiFunction
	default:
		return models.KindUnknown
	}
}
