// Command demodata writes a synthetic boundary polygon and bathymetry grid to
// disk for trying the upload pipeline without survey data.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/aquasight/aquasight/internal/pkg/synthetic"
)

func main() {
	outDir := flag.String("out", ".", "output directory")
	flag.Parse()

	p := synthetic.DefaultParams()

	boundary, err := synthetic.BoundaryGeoJSON(p)
	if err != nil {
		log.Fatalf("boundary: %v", err)
	}
	csvData := synthetic.BathymetryCSV(p)

	boundaryPath := filepath.Join(*outDir, "demo_boundary.json")
	if err := os.WriteFile(boundaryPath, boundary, 0o644); err != nil {
		log.Fatalf("write %s: %v", boundaryPath, err)
	}

	csvPath := filepath.Join(*outDir, "demo_bathymetry.csv")
	if err := os.WriteFile(csvPath, csvData, 0o644); err != nil {
		log.Fatalf("write %s: %v", csvPath, err)
	}

	fmt.Printf("wrote %s and %s\n", boundaryPath, csvPath)
}
