package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yourorg/camera-dashboard/internal/backend"
)

var (
	serverPage     int
	serverPageSize int
	serverAllPages bool

	newServer      backend.MediaServerRequest
	serverUser     string
	serverPassword string
)

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "Manage MediaMTX streaming servers",
}

var serversListCmd = &cobra.Command{
	Use:   "list",
	Short: "List streaming servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		var servers []backend.MediaServer
		page := serverPage
		for {
			res, err := dash.Servers().ListServers(ctx, page, serverPageSize)
			if err != nil {
				return fmt.Errorf("error fetching servers: %w", err)
			}
			servers = append(servers, res.Items...)
			if !serverAllPages || !res.HasNext() {
				break
			}
			page++
		}

		if jsonOutput {
			return printJSON(servers)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tAPI URL\tSTATUS\tACTIVE")
		fmt.Fprintln(w, "--\t----\t-------\t------\t------")
		for _, s := range servers {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\n", s.ID, s.Name, s.APIURL, s.Status, s.IsActive)
		}
		return w.Flush()
	},
}

var serversTestCmd = &cobra.Command{
	Use:   "test SERVER_ID",
	Short: "Test connectivity to a streaming server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		res, err := dash.Servers().TestConnection(ctx, args[0])
		if err != nil {
			return fmt.Errorf("error testing server: %w", err)
		}
		if jsonOutput {
			return printJSON(res)
		}

		if !res.Success {
			fmt.Printf("Server %s unreachable: %s\n", args[0], res.Message)
			return nil
		}
		fmt.Printf("Server %s reachable in %.0f ms", args[0], res.LatencyMs)
		if res.Version != "" {
			fmt.Printf(" (MediaMTX %s)", res.Version)
		}
		fmt.Println()
		return nil
	},
}

var serversShowCmd = &cobra.Command{
	Use:   "show SERVER_ID",
	Short: "Show one streaming server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		srv, err := dash.Servers().GetServer(ctx, args[0])
		if err != nil {
			return fmt.Errorf("error fetching server: %w", err)
		}
		if jsonOutput {
			return printJSON(srv)
		}
		printServer(srv)
		return nil
	},
}

var serversCreateCmd = &cobra.Command{
	Use:     "create",
	Short:   "Register a streaming server",
	Example: `  camctl servers create --name edge-1 --api-url http://10.0.0.5:9997 --rtsp-url rtsp://10.0.0.5:8554`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if newServer.Name == "" || newServer.APIURL == "" {
			return fmt.Errorf("--name and --api-url are required")
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		newServer.AuthRequired = newServer.Username != ""
		srv, err := dash.Servers().CreateServer(ctx, newServer)
		if err != nil {
			return fmt.Errorf("error creating server: %w", err)
		}
		if jsonOutput {
			return printJSON(srv)
		}
		printServer(srv)
		return nil
	},
}

var serversActivateCmd = &cobra.Command{
	Use:   "activate SERVER_ID",
	Short: "Mark a streaming server active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setServerActive(cmd, args[0], true)
	},
}

var serversDeactivateCmd = &cobra.Command{
	Use:   "deactivate SERVER_ID",
	Short: "Mark a streaming server inactive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setServerActive(cmd, args[0], false)
	},
}

var serversLoginCmd = &cobra.Command{
	Use:   "login SERVER_ID",
	Short: "Authenticate against a streaming server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		session, err := dash.Servers().Authenticate(ctx, args[0], serverUser, serverPassword)
		if err != nil {
			return fmt.Errorf("error authenticating: %w", err)
		}
		if jsonOutput {
			return printJSON(session)
		}
		fmt.Printf("Authenticated to %s until %s\n", args[0], session.ExpiresAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

var serversLogoutCmd = &cobra.Command{
	Use:   "logout SERVER_ID",
	Short: "End the session with a streaming server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		if err := dash.Servers().Logout(ctx, args[0]); err != nil {
			return fmt.Errorf("error logging out: %w", err)
		}
		fmt.Printf("Logged out of %s\n", args[0])
		return nil
	},
}

// setServerActive round-trips the server because updates replace the record.
func setServerActive(cmd *cobra.Command, id string, active bool) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	srv, err := dash.Servers().GetServer(ctx, id)
	if err != nil {
		return fmt.Errorf("error fetching server: %w", err)
	}
	srv, err = dash.Servers().UpdateServer(ctx, id, backend.MediaServerRequest{
		Name:         srv.Name,
		APIURL:       srv.APIURL,
		RTSPURL:      srv.RTSPURL,
		RTMPURL:      srv.RTMPURL,
		IsActive:     active,
		AuthRequired: srv.AuthRequired,
		Username:     srv.Username,
	})
	if err != nil {
		return fmt.Errorf("error updating server: %w", err)
	}
	if jsonOutput {
		return printJSON(srv)
	}
	printServer(srv)
	return nil
}

func printServer(s backend.MediaServer) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", s.ID)
	fmt.Fprintf(w, "Name:\t%s\n", s.Name)
	fmt.Fprintf(w, "API URL:\t%s\n", s.APIURL)
	if s.RTSPURL != "" {
		fmt.Fprintf(w, "RTSP URL:\t%s\n", s.RTSPURL)
	}
	if s.RTMPURL != "" {
		fmt.Fprintf(w, "RTMP URL:\t%s\n", s.RTMPURL)
	}
	fmt.Fprintf(w, "Active:\t%v\n", s.IsActive)
	fmt.Fprintf(w, "Auth Required:\t%v\n", s.AuthRequired)
	if s.Status != "" {
		fmt.Fprintf(w, "Status:\t%s\n", s.Status)
	}
	if s.LastHealthCheck != nil {
		fmt.Fprintf(w, "Last Health Check:\t%s\n", s.LastHealthCheck.Format("2006-01-02 15:04:05"))
	}
	w.Flush()
}

var serversDeleteCmd = &cobra.Command{
	Use:   "delete SERVER_ID",
	Short: "Remove a streaming server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		if err := dash.Servers().DeleteServer(ctx, args[0]); err != nil {
			return fmt.Errorf("error deleting server: %w", err)
		}
		fmt.Printf("Server %s deleted\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serversCmd)
	serversCmd.AddCommand(serversListCmd)
	serversCmd.AddCommand(serversTestCmd)
	serversCmd.AddCommand(serversDeleteCmd)
	serversCmd.AddCommand(serversShowCmd)
	serversCmd.AddCommand(serversCreateCmd)
	serversCmd.AddCommand(serversActivateCmd)
	serversCmd.AddCommand(serversDeactivateCmd)
	serversCmd.AddCommand(serversLoginCmd)
	serversCmd.AddCommand(serversLogoutCmd)

	serversListCmd.Flags().IntVar(&serverPage, "page", 1, "Page to fetch")
	serversListCmd.Flags().IntVar(&serverPageSize, "page-size", 20, "Servers per page")
	serversListCmd.Flags().BoolVar(&serverAllPages, "all-pages", false, "Follow pagination to the last page")

	serversCreateCmd.Flags().StringVar(&newServer.Name, "name", "", "Server name")
	serversCreateCmd.Flags().StringVar(&newServer.APIURL, "api-url", "", "MediaMTX API URL")
	serversCreateCmd.Flags().StringVar(&newServer.RTSPURL, "rtsp-url", "", "RTSP publish URL")
	serversCreateCmd.Flags().StringVar(&newServer.RTMPURL, "rtmp-url", "", "RTMP publish URL")
	serversCreateCmd.Flags().BoolVar(&newServer.IsActive, "active", true, "Mark the server active")
	serversCreateCmd.Flags().StringVar(&newServer.Username, "username", "", "API username")
	serversCreateCmd.Flags().StringVar(&newServer.Password, "password", "", "API password")

	serversLoginCmd.Flags().StringVar(&serverUser, "username", "", "API username")
	serversLoginCmd.Flags().StringVar(&serverPassword, "password", "", "API password")
	serversLoginCmd.MarkFlagRequired("username")
	serversLoginCmd.MarkFlagRequired("password")
}
