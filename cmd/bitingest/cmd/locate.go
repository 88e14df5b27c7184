package cmd

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/G-Research/bitingest/internal/app"
	commonapp "github.com/G-Research/bitingest/internal/common/app"
	"github.com/G-Research/bitingest/internal/common/logging"
	"github.com/G-Research/bitingest/internal/common/util"
	"github.com/G-Research/bitingest/internal/ingester/domain"
)

func locateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locate",
		Short: "List the files the configured locator would ingest, without submitting anything",
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			locator, err := app.NewLocator(config.Locator)
			if err != nil {
				return err
			}
			if closer, ok := locator.(io.Closer); ok {
				defer util.CloseResource("locator", closer)
			}

			ctx := commonapp.CreateContextWithShutdown()
			table := util.NewTable("ID", "URL", "SIZE", "CHECKSUM")
			count := 0
			for {
				file, err := locator.NextFile(ctx)
				if errors.Is(err, domain.ErrNoMoreFiles) {
					break
				}
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					logging.WithStacktrace(log.NewEntry(log.StandardLogger()), err).Warn("Skipping file")
					continue
				}
				count++
				table.AddRow(file.Id, file.Url, fmt.Sprint(file.Size), file.Checksum)
			}
			cmd.Print(table.String())
			cmd.Printf("%d files\n", count)
			return nil
		},
	}
}
