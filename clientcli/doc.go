// Package clientcli provides a client library for filegate servers.
//
// It covers upload, download, list, info, delete and health checks against
// the /api/v1/files REST API. Uploads are streamed as multipart/form-data and
// downloads are streamed to disk or to the caller, so file size is bounded by
// the server's limit rather than by client memory.
//
// # Basic Usage
//
//	client, err := clientcli.New(&clientcli.Config{Endpoint: "http://localhost:8080"})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	results, err := client.Upload(ctx, clientcli.UploadOptions{
//		LocalPaths: []string{"./report.pdf"},
//	})
//
// Server errors are returned as *APIError and can be matched with
// errors.Is against ErrNotFound, ErrAlreadyExists, ErrTooLarge and
// ErrStoreUnavailable.
//
// # Profile Configuration
//
// Profiles store connection settings for several servers in
// ~/.filegate/config.yaml:
//
//	configFile, err := clientcli.LoadConfigFile(clientcli.DefaultConfigPath())
//	profile, err := configFile.GetProfile("production")
//	client, err := clientcli.New(clientcli.ConfigFromProfile(profile))
//
// # Output Formatting
//
//	formatter := clientcli.NewFormatter(jsonOutput, quiet)
//	formatter.FormatUpload(os.Stdout, results)
package clientcli
