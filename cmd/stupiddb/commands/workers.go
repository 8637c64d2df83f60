package commands

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/stupid-db/stupid-db/pkg/buffer"
	"github.com/stupid-db/stupid-db/pkg/catalog"
	"github.com/stupid-db/stupid-db/pkg/eisenbahn"
	"github.com/stupid-db/stupid-db/pkg/graph"
	"github.com/stupid-db/stupid-db/pkg/ingest"
	"github.com/stupid-db/stupid-db/pkg/knowledge"
	"github.com/stupid-db/stupid-db/pkg/scheduler"
	"github.com/stupid-db/stupid-db/pkg/segment"
)

var (
	retentionDays int
	sealInterval  time.Duration
	workerCount   int
)

func init() {
	ingestWorkerCmd.Flags().IntVar(&retentionDays, "retention-days", 90, "segment retention horizon")
	ingestWorkerCmd.Flags().DurationVar(&sealInterval, "seal-interval", time.Minute, "how often open segments are sealed")
	computeWorkerCmd.Flags().IntVar(&workerCount, "workers", 0, "compute pool size (0 = CPU count)")
}

var ingestWorkerCmd = &cobra.Command{
	Use:   "ingest-worker",
	Short: "Run the ingest pipeline worker",
	Long: `Pull ingest batches from the pipeline stage, write documents into the
day-partitioned segment store, project entities and edges into the
graph, and keep the catalog fresh. Publishes ingest progress events and
maintains the ingest-queue-depth backpressure signal.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := segment.OpenStore(segment.StoreConfig{
			DataDir:       dataDir,
			RetentionDays: retentionDays,
		})
		if err != nil {
			return err
		}
		catStore, err := catalog.NewFSStore(dataDir + "/catalog")
		if err != nil {
			return err
		}

		ctx, stop := contextWithShutdown(cmd.Context())
		defer stop()

		pub, err := eisenbahn.NewPublisher(ctx, cfg.BrokerFrontendTransport())
		if err != nil {
			return err
		}
		defer pub.Close()

		stage, ok := cfg.StageTransport("ingest")
		if !ok {
			stage = eisenbahn.IPC("stage-ingest")
		}
		receiver, err := eisenbahn.NewPipelineReceiver(ctx, stage)
		if err != nil {
			return err
		}
		defer receiver.Close()

		pipeline := ingest.NewPipeline(store, graph.NewShared(), catStore, pub, nil)

		slog.Info("ingest worker running", "stage", stage.Endpoint(), "data_dir", dataDir)

		sealTicker := time.NewTicker(sealInterval)
		defer sealTicker.Stop()

		// Bounded handoff between the bus receiver and the applier; a
		// full queue blocks the receiver and caps memory.
		backlog := buffer.NewQueue[eisenbahn.Message](256)
		go func() {
			defer backlog.Close()
			for {
				msg, err := receiver.Recv()
				if err != nil {
					if ctx.Err() == nil {
						slog.Error("pipeline receive failed", "err", err)
					}
					return
				}
				var batch eisenbahn.IngestBatch
				if err := msg.Decode(&batch); err != nil {
					slog.Warn("dropping undecodable batch", "err", err)
					continue
				}
				pipeline.Enqueue(len(batch.Records))
				if backlog.Put(msg) != nil {
					return
				}
			}
		}()

		batches := make(chan eisenbahn.Message)
		go func() {
			defer close(batches)
			for {
				msg, err := backlog.Get()
				if err != nil {
					return
				}
				batches <- msg
			}
		}()

		for {
			select {
			case <-ctx.Done():
				if err := pipeline.SealAndCatalog(); err != nil {
					slog.Error("final seal failed", "err", err)
				}
				slog.Info("ingest worker exiting")
				return nil

			case <-sealTicker.C:
				if err := pipeline.SealAndCatalog(); err != nil {
					slog.Error("seal failed", "err", err)
				}
				if evicted, err := store.EvictExpired(); err != nil {
					slog.Error("eviction failed", "err", err)
				} else if len(evicted) > 0 {
					slog.Info("evicted expired segments", "segments", evicted)
				}

			case msg, ok := <-batches:
				if !ok {
					return nil
				}
				var batch eisenbahn.IngestBatch
				if err := msg.Decode(&batch); err != nil {
					continue
				}
				if err := pipeline.ApplyBatch(msg.Topic, batch); err != nil {
					slog.Error("batch failed", "err", err)
				}
			}
		}
	},
}

var computeWorkerCmd = &cobra.Command{
	Use:   "compute-worker",
	Short: "Run the compute scheduler worker",
	Long: `Run the priority-scheduled compute fabric: rebuild the graph from
sealed segments, register the built-in tasks, and tick under
backpressure from the ingest queue. Publishes compute completion events.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := segment.OpenStore(segment.StoreConfig{DataDir: dataDir})
		if err != nil {
			return err
		}

		shared := graph.NewShared()
		if err := rebuildGraph(store, shared); err != nil {
			return err
		}

		ctx, stop := contextWithShutdown(cmd.Context())
		defer stop()

		pub, err := eisenbahn.NewPublisher(ctx, cfg.BrokerFrontendTransport())
		if err != nil {
			return err
		}
		defer pub.Close()

		state := knowledge.NewShared()
		schedCfg := scheduler.DefaultConfig()
		schedCfg.Workers = workerCount
		sched := scheduler.New(schedCfg, state)

		sched.RegisterTask(&scheduler.PageRankTask{Graph: shared, Interval: 5 * time.Minute})
		sched.RegisterTask(&scheduler.DegreeTask{Graph: shared, Interval: 5 * time.Minute})
		sched.RegisterTask(&scheduler.CommunityTask{Graph: shared, Interval: 10 * time.Minute})
		sched.RegisterTask(&scheduler.CooccurrenceTask{Graph: shared, Interval: 10 * time.Minute})
		sched.RegisterTask(&scheduler.AnomalyScoringTask{Graph: shared, Interval: 5 * time.Minute, Bus: pub})
		sched.RegisterTask(&scheduler.AnomalyInsightTask{Interval: 5 * time.Minute})
		sched.RegisterTask(&scheduler.TrendTask{Graph: shared, Interval: 5 * time.Minute})
		sched.RegisterTask(scheduler.NewFullKMeansTask(24 * time.Hour))
		sched.RegisterTask(&scheduler.PrefixSpanTask{Store: store, Interval: 6 * time.Hour})
		// Scoring leans on community labels for the graph signal, and
		// insights read the scores scoring writes.
		sched.AddDependency("community_detection", "anomaly_scoring")
		sched.AddDependency("anomaly_scoring", "anomaly_detection")

		go func() {
			<-ctx.Done()
			sched.Shutdown()
		}()

		slog.Info("compute worker running", "workers", schedCfg.ResolvedWorkers())
		sched.Run()

		metrics := sched.Metrics()
		for task, count := range metrics.TasksExecuted {
			if err := pub.PublishEvent(eisenbahn.TopicComputeComplete, eisenbahn.ComputeComplete{
				BatchID:          task,
				FeaturesComputed: count,
			}); err != nil {
				slog.Warn("compute event publish failed", "err", err)
			}
		}
		slog.Info("compute worker exiting")
		return nil
	},
}

// rebuildGraph replays every sealed segment through the projector.
// Nodes whose only back-refs pointed at evicted segments disappear
// here, which is why a full rebuild follows bulk eviction.
func rebuildGraph(store *segment.Store, shared *graph.Shared) error {
	segments := store.ListSegments()
	total := 0
	for _, segID := range segments {
		reader, err := segment.OpenReader(dataDir, segID)
		if err != nil {
			slog.Warn("skipping unreadable segment", "segment", segID, "err", err)
			continue
		}
		docs, err := reader.Documents()
		reader.Close()
		if err != nil {
			slog.Warn("segment decode aborted", "segment", segID, "err", err)
		}
		shared.Write(func(g *graph.Store) {
			projector := graph.NewProjector(g)
			total += projector.ProjectBatch(docs, segID)
		})
	}
	slog.Info("graph rebuilt", "segments", len(segments), "documents", total)
	return nil
}
