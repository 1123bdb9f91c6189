package main

import (
	"flag"
	"log"
	"os"

	"github.com/macropower/rulelimits/api/v1beta1/configs"
	"github.com/macropower/rulelimits/pkg/yaml"
)

const schemaID = "https://raw.githubusercontent.com/macropower/rulelimits/refs/heads/main/api/v1beta1/configs/configs.v1beta1.json"

var outFile = flag.String("o", "configs.v1beta1.json", "Output file for the generated schema")

func main() {
	flag.Parse()

	gen := yaml.NewSchemaGenerator(configs.New(), schemaID)

	jsData, err := gen.Generate()
	if err != nil {
		log.Fatalf("generate JSON schema: %v", err)
	}

	err = os.WriteFile(*outFile, jsData, 0o600)
	if err != nil {
		log.Fatalf("write schema file: %v", err)
	}
}
