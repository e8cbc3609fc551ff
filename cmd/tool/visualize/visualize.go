package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/danl5/ringelect/pkg/election"
	"github.com/danl5/ringelect/pkg/model"
)

var (
	outputDir = flag.String("o", "./fsm_visual", "output directory")
)

func main() {
	flag.Parse()

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		panic(err)
	}

	for _, alg := range []model.Algorithm{model.AlgorithmDoubling, model.AlgorithmUnidirectional} {
		path := filepath.Join(*outputDir, alg.String()+".dot")
		if err := os.WriteFile(path, []byte(election.Visualize(alg)), 0o644); err != nil {
			panic(err)
		}
		fmt.Println("wrote", path)
	}

	fmt.Println("Visualization finished")
}
