package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/iancoleman/strcase"
	"github.com/tidwall/sjson"
	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/commonground/zgw2vrijbrp/sync"
)

// handlerCommands returns one command per case type plus zaak, which
// dispatches on the zaaktype identifier.
func handlerCommands() []cli.Command {
	var result []cli.Command
	for _, t := range append([]sync.CaseType{sync.CaseTypeNone}, sync.CaseTypes()...) {
		result = append(result, handlerCommand(t))
	}
	return result
}

func handlerCommand(t sync.CaseType) cli.Command {
	usage := fmt.Sprintf("Map a ZGW zaak to a VrijBRP %s request and send it", t)
	if t == sync.CaseTypeNone {
		usage = "Map a ZGW zaak to the VrijBRP request its zaaktype asks for and send it"
	}
	return cli.Command{
		Name:  t.String(),
		Usage: usage,
		Flags: []cli.Flag{
			cli.StringFlag{Name: "zaak, z", Usage: "The id of the zaak we should send"},
			cli.StringFlag{Name: "file, f", Usage: "Load the zaak from this JSON file before sending"},
			cli.StringFlag{Name: "source, s", Usage: "The reference of the source we will send a request to"},
			cli.StringFlag{Name: "location, l", Usage: "The endpoint we will use on the source"},
			cli.StringFlag{Name: "mapping, m", Usage: "The reference of the mapping we will use before sending the data to the source"},
			cli.StringFlag{Name: "synchronizationEntity, e", Usage: "The reference of the entity we need to create a synchronization object"},
		},
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			env, err := setup(ctx, c)
			if err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
			defer env.Close()

			configuration := sync.HandlerConfiguration{
				Source:                c.String("source"),
				Location:              c.String("location"),
				Mapping:               c.String("mapping"),
				SynchronizationEntity: c.String("synchronizationEntity"),
			}
			id := c.String("zaak")
			if file := c.String("file"); file != "" {
				entity := env.sc.Config.HandlerDefaults(t).Merge(configuration).SynchronizationEntity
				object, err := loadObject(ctx, env.sc, file, entity, id)
				if err != nil {
					return cli.NewExitError(err.Error(), 1)
				}
				id = object.ID
			}
			if id == "" {
				return cli.NewExitError(fmt.Sprintf("Please use %s -z {id of a zaak}", t), 1)
			}

			data, err := sjson.SetBytes([]byte("{}"), sync.ObjectIDPath, id)
			if err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
			result := sync.NewHandler(env.sc, t).Handle(ctx, data, configuration)
			if result.Err != nil {
				return cli.NewExitError(fmt.Sprintf("%s failed at %s: %v", t, result.Stage, result.Err), 1)
			}
			fmt.Println(result.Payload.Raw())
			return nil
		},
	}
}

// loadObject stores the zaak in file under id, or under the id the zaak
// itself carries, or a new one.
func loadObject(ctx context.Context, sc *sync.SyncContext, file, entity, id string) (sync.Object, error) {
	contents, err := os.ReadFile(file)
	if err != nil {
		return sync.Object{}, fmt.Errorf("failed to read zaak %w", err)
	}
	if _, err = sync.PayloadFromJSON(contents); err != nil {
		return sync.Object{}, fmt.Errorf("failed to read zaak %s %w", file, err)
	}
	if id == "" {
		id = sync.NewCase(contents).ID()
	}
	if id == "" {
		id = uuid.NewString()
	}
	now := sc.Now()
	object := sync.Object{ID: id, Entity: entity, Data: contents, DateCreated: now, DateModified: now}
	if err = sc.Store.SaveObject(ctx, object); err != nil {
		return object, err
	}
	sc.Logger.Debug("loaded zaak", zap.String("object", id), zap.String("file", file))
	return object, nil
}

func loadCommand() cli.Command {
	return cli.Command{
		Name:      "load",
		Usage:     "Store zaak JSON files as objects of an entity",
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "entity, e", Usage: "The reference of the entity the objects belong to"},
		},
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			env, err := setup(ctx, c)
			if err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
			defer env.Close()

			entity := c.String("entity")
			if entity == "" {
				entity = env.sc.Config.HandlerDefaults(sync.CaseTypeNone).SynchronizationEntity
			}
			if _, err = env.sc.Registry.FindEntity(entity); err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
			for _, file := range c.Args() {
				object, err := loadObject(ctx, env.sc, file, entity, "")
				if err != nil {
					return cli.NewExitError(err.Error(), 1)
				}
				fmt.Printf("%s\t%s\n", object.ID, file)
			}
			return nil
		},
	}
}

func cleanupCommand() cli.Command {
	return cli.Command{
		Name:  "cleanup",
		Usage: "Delete the objects of an entity older than a retention period",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "objectType, o", Usage: "The reference of the entity we want to clear", Value: "https://vng.opencatalogi.nl/schemas/zrc.zaak.schema.json"},
			cli.StringFlag{Name: "retentionPeriod, r", Usage: "ISO 8601 duration objects are kept, e.g. PT1H"},
		},
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			env, err := setup(ctx, c)
			if err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
			defer env.Close()

			deleted, err := sync.CleanUp{SyncContext: env.sc}.Handle(ctx, sync.CleanUpConfiguration{
				ObjectType:      c.String("objectType"),
				RetentionPeriod: c.String("retentionPeriod"),
			})
			if err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
			fmt.Printf("deleted %d objects\n", deleted)
			return nil
		},
	}
}

func docsCommand() cli.Command {
	return cli.Command{
		Name:      "docs",
		Usage:     "Print mapping definitions as CSV",
		ArgsUsage: "[REFERENCE]",
		Action: func(c *cli.Context) error {
			env, err := setup(context.Background(), c)
			if err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
			defer env.Close()

			defs := env.sc.Registry.Mappings()
			if reference := c.Args().First(); reference != "" {
				def, err := env.sc.Registry.FindMapping(reference)
				if err != nil {
					return cli.NewExitError(err.Error(), 1)
				}
				defs = []sync.MappingDefinition{def}
			}
			for _, def := range defs {
				out, err := sync.GenerateMappingDocumentation(def).FormatCSV()
				if err != nil {
					return cli.NewExitError(err.Error(), 1)
				}
				fmt.Println(out)
			}
			return nil
		},
	}
}

func schemaCommand() cli.Command {
	return cli.Command{
		Name:      "schema",
		Usage:     "Print the configuration schema of a handler",
		ArgsUsage: "[HANDLER]",
		Action: func(c *cli.Context) error {
			env, err := setup(context.Background(), c)
			if err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
			defer env.Close()

			t := sync.CaseTypeNone
			if name := c.Args().First(); name != "" && name != t.String() {
				if t, err = sync.ParseCaseType(strcase.ToSnake(name)); err != nil {
					return cli.NewExitError(err.Error(), 1)
				}
			}
			schema, err := sync.NewHandler(env.sc, t).ConfigurationSchema()
			if err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
			fmt.Println(schema)
			return nil
		},
	}
}

func serveCommand() cli.Command {
	return cli.Command{
		Name:  "serve",
		Usage: "Serve the handlers as HTTP actions",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "addr", Usage: "Listen address", Value: ":8080"},
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			env, err := setup(ctx, c)
			if err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
			defer env.Close()

			srv := &http.Server{
				Addr:              c.String("addr"),
				Handler:           sync.Server{SyncContext: env.sc, Gatherer: env.gatherer}.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), sync.HTTPRequestTimeout)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
			env.sc.Logger.Info("serving actions", zap.String("addr", srv.Addr))
			if err = srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return cli.NewExitError(err.Error(), 1)
			}
			return nil
		},
	}
}
