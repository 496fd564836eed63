package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"syllabus-calendar-be/internal/dto"
	"syllabus-calendar-be/internal/entity"
	"syllabus-calendar-be/pkg/store"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

// Exit codes by failure category so scripts can branch on the outcome.
const (
	exitUnknown    = 1
	exitValidation = 2
	exitNetwork    = 3
	exitServer     = 4
	exitInvalid    = 5
)

type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

type envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func (c *apiClient) do(method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return cli.Exit(fmt.Sprintf("network error: %v", err), exitNetwork)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return cli.Exit(fmt.Sprintf("network error: %v", err), exitNetwork)
	}

	if resp.StatusCode >= 400 {
		var apiErr envelope[*entity.ImportError]
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Data != nil {
			return cli.Exit(
				fmt.Sprintf("%s: %s", apiErr.Data.Category, apiErr.Data.Message),
				exitForCategory(apiErr.Data.Category),
			)
		}
		return cli.Exit(fmt.Sprintf("server returned status %d: %s", resp.StatusCode, string(raw)), exitServer)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return cli.Exit(fmt.Sprintf("undecodable response: %v", err), exitInvalid)
		}
	}
	return nil
}

func exitForCategory(category entity.ErrorCategory) int {
	switch category {
	case entity.ErrorCategoryValidation:
		return exitValidation
	case entity.ErrorCategoryNetwork:
		return exitNetwork
	case entity.ErrorCategoryServer:
		return exitServer
	case entity.ErrorCategoryInvalidResponse:
		return exitInvalid
	default:
		return exitUnknown
	}
}

func newClient(cCtx *cli.Context) *apiClient {
	return &apiClient{
		baseURL: cCtx.String("api"),
		token:   cCtx.String("token"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func main() {
	godotenv.Load()

	app := &cli.App{
		Name:  "syllabus-cal",
		Usage: "Import syllabi and manage the resulting calendar events",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api",
				Usage:   "Base URL of the backend API",
				Value:   "http://localhost:3000/api",
				EnvVars: []string{"SYLLABUS_API_URL"},
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "JWT bearer token",
				EnvVars: []string{"SYLLABUS_API_TOKEN"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "Upload a syllabus document and wait for the import to finish",
				ArgsUsage: "<path-to-document>",
				Action:    runImport,
			},
			{
				Name:   "list",
				Usage:  "List calendar events, ordered by next occurrence",
				Action: runList,
			},
			{
				Name:   "refresh",
				Usage:  "Push pending local changes and re-pull from the backend",
				Action: runRefresh,
			},
		},
	}

	// ExitCoder errors are handled (printed + exit code) by app.Run itself.
	if err := app.Run(os.Args); err != nil {
		color.Red("%v", err)
		os.Exit(exitUnknown)
	}
}

func runImport(cCtx *cli.Context) error {
	if cCtx.NArg() != 1 {
		return cli.Exit("usage: syllabus-cal import <path-to-document>", exitValidation)
	}
	path := cCtx.Args().First()

	file, err := os.Open(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot open %s: %v", path, err), exitValidation)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("document", filepath.Base(path))
	if err != nil {
		return cli.Exit(err.Error(), exitUnknown)
	}
	if _, err := io.Copy(part, file); err != nil {
		return cli.Exit(err.Error(), exitUnknown)
	}
	writer.Close()

	client := newClient(cCtx)

	var started envelope[dto.StartImportResponse]
	if err := client.do(http.MethodPost, "/import/v1", &buf, writer.FormDataContentType(), &started); err != nil {
		return err
	}
	color.Cyan("Import started (session %s)", started.Data.SessionId)

	// Poll until the session reaches a terminal stage.
	for {
		time.Sleep(1 * time.Second)

		var status envelope[dto.ImportStatusResponse]
		if err := client.do(http.MethodGet, "/import/v1/status", nil, "", &status); err != nil {
			return err
		}

		snap := status.Data.Session
		fmt.Printf("  [%-13s] %3.0f%%  %s\n", snap.Stage, snap.Progress*100, snap.Status)

		switch snap.Stage {
		case store.StageCompleted:
			color.Green("Import complete")
			return nil
		case store.StageCancelled:
			color.Yellow("Import cancelled")
			return nil
		case store.StageFailed:
			if snap.Error != nil {
				return cli.Exit(
					fmt.Sprintf("%s: %s (request %s)", snap.Error.Category, snap.Error.Message, snap.Error.RequestId),
					exitForCategory(snap.Error.Category),
				)
			}
			return cli.Exit("import failed", exitUnknown)
		}
	}
}

func runList(cCtx *cli.Context) error {
	client := newClient(cCtx)

	var res envelope[dto.ListEventsResponse]
	if err := client.do(http.MethodGet, "/event/v1", nil, "", &res); err != nil {
		return err
	}

	if len(res.Data.Events) == 0 {
		color.Yellow("No events")
		return nil
	}

	bold := color.New(color.Bold)
	for _, e := range res.Data.Events {
		marker := " "
		if e.Dirty {
			marker = color.YellowString("*")
		}
		bold.Printf("%s %-12s", marker, e.Type)
		fmt.Printf(" %s  %s", e.NextOccurrence.Format("2006-01-02 15:04"), e.Title)
		if e.CourseCode != "" {
			fmt.Printf("  (%s)", e.CourseCode)
		}
		fmt.Println()
	}
	return nil
}

func runRefresh(cCtx *cli.Context) error {
	client := newClient(cCtx)

	var res envelope[dto.ListEventsResponse]
	if err := client.do(http.MethodPost, "/event/v1/refresh", nil, "", &res); err != nil {
		return err
	}

	color.Green("Refreshed: %d events", len(res.Data.Events))
	return nil
}
