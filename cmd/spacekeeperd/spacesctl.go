package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var spacesctlAddr string

// spacesctlCmd is a thin WebSocket client for a running spacekeeperd,
// issuing the same request/response actions the browser extension sends.
var spacesctlCmd = &cobra.Command{
	Use:   "spacesctl",
	Short: "Talk to a running spacekeeperd over its WebSocket API",
}

func init() {
	spacesctlCmd.PersistentFlags().StringVar(&spacesctlAddr, "addr", "127.0.0.1:7890", "spacekeeperd API address")

	saveCmd.Flags().Int64("wid", 0, "window id to save")
	saveCmd.Flags().String("name", "", "session name")
	saveCmd.Flags().Bool("delete-old", false, "delete any existing session with the same name")

	renameCmd.Flags().Int64("sid", 0, "session id to rename")
	renameCmd.Flags().String("name", "", "new session name")
	renameCmd.Flags().Bool("delete-old", false, "delete any existing session with the same name")

	switchCmd.Flags().Int64("sid", 0, "session id to switch to")
	switchCmd.Flags().Int64("wid", 0, "window id to switch to")

	deleteCmd.Flags().Int64("sid", 0, "session id to delete")

	moveTabCmd.Flags().Int64("tab-id", 0, "tab id to move")
	moveTabCmd.Flags().Int64("sid", 0, "destination session id")
	moveTabCmd.Flags().Int64("wid", 0, "destination window id")

	addLinkCmd.Flags().String("url", "", "url to add")
	addLinkCmd.Flags().Int64("sid", 0, "destination session id")
	addLinkCmd.Flags().Int64("wid", 0, "destination window id")

	importCmd.Flags().StringSlice("urls", nil, "urls to import as a new session")

	restoreCmd.Flags().String("file", "", "path to a backup snapshot JSON file")
	restoreCmd.Flags().Bool("delete-old", false, "delete any existing session with the same name")

	spacesctlCmd.AddCommand(saveCmd, renameCmd, listCmd, switchCmd, deleteCmd, moveTabCmd, addLinkCmd, importCmd, restoreCmd)
}

func dialSpacekeeperd() (*websocket.Conn, error) {
	u := url.URL{Scheme: "ws", Host: spacesctlAddr, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}
	return conn, nil
}

// sendRequest sends req and waits up to 5s for a response. A spacekeeperd
// that drops the request (malformed or refused) never writes a response,
// so the read simply times out.
func sendRequest(req map[string]any) (json.RawMessage, error) {
	conn, err := dialSpacekeeperd()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("no response from spacekeeperd (request dropped or timed out): %w", err)
	}
	return raw, nil
}

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save the current window as a new named session",
	RunE: func(cmd *cobra.Command, args []string) error {
		wid, _ := cmd.Flags().GetInt64("wid")
		name, _ := cmd.Flags().GetString("name")
		deleteOld, _ := cmd.Flags().GetBool("delete-old")
		return printResponse(sendRequest(map[string]any{
			"action": "save_new_session", "wid": wid, "name": name, "delete_old": deleteOld,
		}))
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename",
	Short: "Rename an existing session",
	RunE: func(cmd *cobra.Command, args []string) error {
		sid, _ := cmd.Flags().GetInt64("sid")
		name, _ := cmd.Flags().GetString("name")
		deleteOld, _ := cmd.Flags().GetBool("delete-old")
		return printResponse(sendRequest(map[string]any{
			"action": "update_session_name", "sid": sid, "name": name, "delete_old": deleteOld,
		}))
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every known space",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResponse(sendRequest(map[string]any{"action": "request_all_spaces"}))
	},
}

var switchCmd = &cobra.Command{
	Use:   "switch",
	Short: "Resolve the space for a session or window id",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := map[string]any{"action": "switch_to_space"}
		if sid, _ := cmd.Flags().GetInt64("sid"); sid != 0 {
			req["sid"] = sid
		}
		if wid, _ := cmd.Flags().GetInt64("wid"); wid != 0 {
			req["wid"] = wid
		}
		return printResponse(sendRequest(req))
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		sid, _ := cmd.Flags().GetInt64("sid")
		return printResponse(sendRequest(map[string]any{"action": "delete_session", "sid": sid}))
	},
}

var moveTabCmd = &cobra.Command{
	Use:   "move-tab",
	Short: "Move a tab into an existing session or window",
	RunE: func(cmd *cobra.Command, args []string) error {
		tabID, _ := cmd.Flags().GetInt64("tab-id")
		if sid, _ := cmd.Flags().GetInt64("sid"); sid != 0 {
			return printResponse(sendRequest(map[string]any{
				"action": "move_tab_to_session", "tab_id": tabID, "sid": sid,
			}))
		}
		wid, _ := cmd.Flags().GetInt64("wid")
		return printResponse(sendRequest(map[string]any{
			"action": "move_tab_to_window", "tab_id": tabID, "wid": wid,
		}))
	},
}

var addLinkCmd = &cobra.Command{
	Use:   "add-link",
	Short: "Add a URL as a new tab in an existing session or window",
	RunE: func(cmd *cobra.Command, args []string) error {
		link, _ := cmd.Flags().GetString("url")
		if sid, _ := cmd.Flags().GetInt64("sid"); sid != 0 {
			return printResponse(sendRequest(map[string]any{
				"action": "add_link_to_session", "url": link, "sid": sid,
			}))
		}
		wid, _ := cmd.Flags().GetInt64("wid")
		return printResponse(sendRequest(map[string]any{
			"action": "add_link_to_window", "url": link, "wid": wid,
		}))
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a list of URLs as a new session",
	RunE: func(cmd *cobra.Command, args []string) error {
		urls, _ := cmd.Flags().GetStringSlice("urls")
		return printResponse(sendRequest(map[string]any{
			"action": "import_new_session", "url_list": urls,
		}))
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore a session from a backup snapshot file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		if path == "" {
			return fmt.Errorf("--file is required")
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		deleteOld, _ := cmd.Flags().GetBool("delete-old")
		return printResponse(sendRequest(map[string]any{
			"action": "restore_from_backup", "space": json.RawMessage(raw), "delete_old": deleteOld,
		}))
	},
}

func printResponse(raw json.RawMessage, err error) error {
	if err != nil {
		return err
	}
	var pretty any
	if jsonErr := json.Unmarshal(raw, &pretty); jsonErr == nil {
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
		return nil
	}
	fmt.Println(strings.TrimSpace(string(raw)))
	return nil
}
