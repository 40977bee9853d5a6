package scanner

import (
	"testing"

	"github.com/scandock/scandock/internal/models"
)

func TestParseListing(t *testing.T) {
	tests := []struct {
		name       string
		output     string
		wantDevice string
		wantVendor string
		wantModel  string
		wantKind   models.ScannerKind
	}{
		{
			name:       "multi-function with duplicated vendor",
			output:     "device `pixma:04A91234_ABCDE' is a CANON Canon PIXMA MG5500 Series multi-function peripheral",
			wantDevice: "pixma:04A91234_ABCDE",
			wantVendor: "CANON",
			wantModel:  "PIXMA MG5500 Series multi-function peripheral",
			wantKind:   models.KindMultiFunction,
		},
		{
			name:       "flatbed",
			output:     "device `epson2:libusb:001:004' is a Epson Perfection V600 flatbed scanner",
			wantDevice: "epson2:libusb:001:004",
			wantVendor: "Epson",
			wantModel:  "Perfection V600 flatbed scanner",
			wantKind:   models.KindFlatbed,
		},
		{
			name:       "sheet fed",
			output:     "device `fujitsu:ScanSnap iX500:1234' is a FUJITSU ScanSnap iX500 sheet-fed scanner",
			wantDevice: "fujitsu:ScanSnap iX500:1234",
			wantVendor: "FUJITSU",
			wantModel:  "ScanSnap iX500 sheet-fed scanner",
			wantKind:   models.KindSheetFed,
		},
		{
			name:       "feeder counts as sheet-fed",
			output:     "device `bro:usb' is a Brother ADS-1700W document feeder",
			wantDevice: "bro:usb",
			wantVendor: "Brother",
			wantModel:  "ADS-1700W document feeder",
			wantKind:   models.KindSheetFed,
		},
		{
			name:       "unknown kind",
			output:     "device `test:0' is a Acme Imager 9000",
			wantDevice: "test:0",
			wantVendor: "Acme",
			wantModel:  "Imager 9000",
			wantKind:   models.KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devices := Devices(ParseListing(tt.output))
			if len(devices) != 1 {
				t.Fatalf("expected 1 device, got %d", len(devices))
			}
			d := devices[0]
			if d.Device != tt.wantDevice {
				t.Errorf("device = %q, want %q", d.Device, tt.wantDevice)
			}
			if d.Vendor != tt.wantVendor {
				t.Errorf("vendor = %q, want %q", d.Vendor, tt.wantVendor)
			}
			if d.Model != tt.wantModel {
				t.Errorf("model = %q, want %q", d.Model, tt.wantModel)
			}
			if d.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", d.Kind, tt.wantKind)
			}
			if !d.Available {
				t.Error("parsed device should be available")
			}
		})
	}
}

func TestParseListingMultipleDevices(t *testing.T) {
	output := "device `pixma:1' is a CANON PIXMA flatbed scanner\n" +
		"device `fujitsu:2' is a FUJITSU iX500 sheet-fed scanner\n"

	devices := Devices(ParseListing(output))
	if len(devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(devices))
	}
	if devices[0].Device != "pixma:1" || devices[1].Device != "fujitsu:2" {
		t.Errorf("devices parsed out of order: %v", devices)
	}
}

func TestParseListingUnrecognizedLine(t *testing.T) {
	output := "device pixma without the expected quoting\n" +
		"device `good:1' is a Vendor Model flatbed scanner"

	results := ParseListing(output)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Parsed {
		t.Error("malformed line should not parse")
	}
	if results[0].Raw == "" {
		t.Error("unrecognized line should carry its raw text")
	}
	if !results[1].Parsed {
		t.Error("well-formed line should parse")
	}
}

func TestParseListingIgnoresNoise(t *testing.T) {
	output := "\nNo scanners were identified. If you were expecting something different,\n" +
		"check that the scanner is plugged in\n"

	results := ParseListing(output)
	if len(results) != 0 {
		t.Errorf("noise lines should produce no results, got %v", results)
	}
}
