package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/maubot-tools/mbdash/internal/client"
	"maunium.net/go/mautrix/id"
)

// splitAction takes the verb off the front of a management command.
func splitAction(cmd string, args []string, actions ...string) (string, []string, error) {
	if len(args) == 0 || !slices.Contains(actions, args[0]) {
		return "", nil, fmt.Errorf("usage: mbdash %s %s [flags] <id>", cmd, strings.Join(actions, "|"))
	}
	return args[0], args[1:], nil
}

// parseManage parses the flags of one management action and checks that
// exactly want positional arguments follow them.
func parseManage(fs *flag.FlagSet, common *commonFlags, args []string, want int, usage string) (*client.HTTPClient, error) {
	common.register(fs)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: mbdash %s [flags] %s\n", fs.Name(), usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != want {
		fs.Usage()
		return nil, fmt.Errorf("%s needs %s", fs.Name(), usage)
	}
	cfg, err := common.load()
	if err != nil {
		return nil, err
	}
	return apiClient(cfg), nil
}

func runInstance(ctx context.Context, args []string, stdout io.Writer) error {
	action, args, err := splitAction("instance", args, "enable", "disable", "rename", "delete")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("instance "+action, flag.ContinueOnError)
	var common commonFlags
	want, usage := 1, "<id>"
	if action == "rename" {
		want, usage = 2, "<id> <new-id>"
	}
	api, err := parseManage(fs, &common, args, want, usage)
	if err != nil {
		return err
	}
	instanceID := fs.Arg(0)

	switch action {
	case "enable", "disable":
		inst, err := api.Instance(ctx, instanceID)
		if err != nil {
			return err
		}
		inst.Enabled = action == "enable"
		out, err := api.PutInstance(ctx, *inst, "")
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s %s %s\n", stateMark(out.Enabled, out.Started), out.ID, colorDim.Sprint(action+"d"))
	case "rename":
		inst, err := api.Instance(ctx, instanceID)
		if err != nil {
			return err
		}
		inst.ID = fs.Arg(1)
		out, err := api.PutInstance(ctx, *inst, instanceID)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s renamed %s to %s\n", colorOK.Sprint("✓"), instanceID, out.ID)
	case "delete":
		if _, err := api.DeleteInstance(ctx, instanceID); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s deleted instance %s\n", colorOK.Sprint("✓"), instanceID)
	}
	return nil
}

func runClient(ctx context.Context, args []string, stdout io.Writer) error {
	action, args, err := splitAction("client", args, "enable", "disable", "delete")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("client "+action, flag.ContinueOnError)
	var common commonFlags
	api, err := parseManage(fs, &common, args, 1, "<user-id>")
	if err != nil {
		return err
	}
	userID := id.UserID(fs.Arg(0))
	if _, _, err := userID.Parse(); err != nil {
		return fmt.Errorf("client id: %w", err)
	}

	switch action {
	case "enable", "disable":
		cl, err := api.Client(ctx, userID)
		if err != nil {
			return err
		}
		cl.Enabled = action == "enable"
		out, err := api.PutClient(ctx, *cl)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s %s %s\n", stateMark(out.Enabled, out.Started), out.ID, colorDim.Sprint(action+"d"))
	case "delete":
		if _, err := api.DeleteClient(ctx, userID); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s deleted client %s\n", colorOK.Sprint("✓"), userID)
	}
	return nil
}

func runPlugin(ctx context.Context, args []string, stdout io.Writer) error {
	action, args, err := splitAction("plugin", args, "upload", "delete")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("plugin "+action, flag.ContinueOnError)
	var common commonFlags

	switch action {
	case "upload":
		replace := fs.String("id", "", "Replace this plugin instead of taking the ID from the archive")
		api, err := parseManage(fs, &common, args, 1, "<plugin.mbp>")
		if err != nil {
			return err
		}
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			return err
		}
		defer f.Close()
		p, err := api.UploadPlugin(ctx, f, *replace)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s uploaded %s %s\n", colorOK.Sprint("✓"), p.ID, colorDim.Sprint(p.Version))
	case "delete":
		api, err := parseManage(fs, &common, args, 1, "<plugin-id>")
		if err != nil {
			return err
		}
		if _, err := api.DeletePlugin(ctx, fs.Arg(0)); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s deleted plugin %s\n", colorOK.Sprint("✓"), fs.Arg(0))
	}
	return nil
}
