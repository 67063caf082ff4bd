// Command traincoordctl is the coordinator binary: it disseminates a
// dataset across the configured roster and dispatches training jobs
// against it, writing the best-scoring model to disk.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pangea-net/traincoord/internal/ast"
	"github.com/pangea-net/traincoord/internal/config"
	"github.com/pangea-net/traincoord/internal/dataset"
	"github.com/pangea-net/traincoord/internal/dispatcher"
	"github.com/pangea-net/traincoord/internal/dissemination"
	"github.com/pangea-net/traincoord/internal/modelfile"
	"github.com/pangea-net/traincoord/internal/remote"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	logger := log.New(os.Stderr, "traincoordctl: ", log.LstdFlags)
	switch os.Args[1] {
	case "seed":
		runSeed(logger, os.Args[2:])
	case "dispatch":
		runDispatch(logger, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: traincoordctl <seed|dispatch> [flags]")
}

func loadRoster(configName string) ([]*remote.Server, *config.Settings, error) {
	mgr := config.NewManager(configName)
	settings, err := mgr.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	servers := make([]*remote.Server, len(settings.Roster))
	for i, rc := range settings.Roster {
		servers[i] = remote.New(rc.Name, rc.Host, rc.Port)
	}
	return servers, settings, nil
}

func loadDataset(path string) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return dataset.Read(bufio.NewReader(f))
}

func runSeed(logger *log.Logger, args []string) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	configName := fs.String("config", "traincoordctl", "coordinator config name")
	datasetPath := fs.String("dataset", "", "path to a dataset file")
	fs.Parse(args)

	if *datasetPath == "" {
		logger.Fatal("seed: -dataset is required")
	}

	servers, settings, err := loadRoster(*configName)
	if err != nil {
		logger.Fatalf("seed: %v", err)
	}
	d, err := loadDataset(*datasetPath)
	if err != nil {
		logger.Fatalf("seed: %v", err)
	}

	result, err := dissemination.Distribute(servers, d, settings.NumSeededHosts, settings.RemoteReadTimeout)
	if err != nil {
		logger.Fatalf("seed: %v", err)
	}
	logger.Printf("dataset %s now held by %d/%d servers", d.Hash(), len(result.Holding), len(servers))
}

func runDispatch(logger *log.Logger, args []string) {
	fs := flag.NewFlagSet("dispatch", flag.ExitOnError)
	configName := fs.String("config", "traincoordctl", "coordinator config name")
	datasetPath := fs.String("dataset", "", "path to a dataset file already disseminated to the roster")
	factoryName := fs.String("factory", "", "factory name to train with")
	transforms := fs.String("transforms", "", "opaque transforms string passed to the factory")
	jobCount := fs.Int("jobs", 1, "number of training jobs to dispatch")
	outPath := fs.String("out", "model.bin", "where to write the winning model")
	modelName := fs.String("name", "model", "name stamped into the saved model file")
	fs.Parse(args)

	if *datasetPath == "" || *factoryName == "" {
		logger.Fatal("dispatch: -dataset and -factory are required")
	}

	servers, settings, err := loadRoster(*configName)
	if err != nil {
		logger.Fatalf("dispatch: %v", err)
	}
	d, err := loadDataset(*datasetPath)
	if err != nil {
		logger.Fatalf("dispatch: %v", err)
	}

	jobs := make([]dispatcher.Job, *jobCount)
	for i := range jobs {
		jobs[i] = dispatcher.Job{FactoryName: *factoryName, Transforms: *transforms, Dataset: d}
	}

	disp := dispatcher.New(dispatcher.Config{
		Servers:    servers,
		Jobs:       jobs,
		AgeTimeout: settings.RemoteWorkerTimeout,
		LimitIO:    settings.LimitNetworkIO,
	})

	ctx, cancel := context.WithTimeout(context.Background(), settings.RemoteWorkerTimeout*time.Duration(*jobCount+1))
	defer cancel()

	outcomes, err := disp.Run(ctx)
	if err != nil {
		logger.Fatalf("dispatch: %v", err)
	}

	best := bestOutcome(outcomes)
	if best == nil {
		logger.Fatal("dispatch: no job produced a usable result")
	}
	logger.Printf("best score %d from job %d", best.Score, best.JobIndex)

	columnNames := make([]string, len(d.Columns))
	columnTypes := make([]ast.VariableKind, len(d.Columns))
	for i, c := range d.Columns {
		columnNames[i] = c.Name
		columnTypes[i] = c.Kind
	}

	m := &modelfile.Model{
		Name:        *modelName,
		ColumnNames: columnNames,
		ColumnTypes: columnTypes,
		NumInputs:   len(d.Columns),
		Root:        best.Code,
	}

	out, err := os.Create(*outPath)
	if err != nil {
		logger.Fatalf("dispatch: create %s: %v", *outPath, err)
	}
	defer out.Close()
	w := bufio.NewWriter(out)
	if err := modelfile.Save(w, m); err != nil {
		logger.Fatalf("dispatch: save model: %v", err)
	}
	if err := w.Flush(); err != nil {
		logger.Fatalf("dispatch: flush model: %v", err)
	}
	logger.Printf("wrote model %q to %s", *modelName, *outPath)
}

func bestOutcome(outcomes []dispatcher.Outcome) *dispatcher.Outcome {
	var best *dispatcher.Outcome
	for i := range outcomes {
		o := &outcomes[i]
		if o.Err != nil || o.Code == nil {
			continue
		}
		if best == nil || o.Score < best.Score {
			best = o
		}
	}
	return best
}
