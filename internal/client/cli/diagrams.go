package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"
)

var errUsage = errors.New("usage")

var getMultiline = GetMultiline

func parseID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errUsage
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid diagram id %q", args[0])
	}
	return id, nil
}

func (a *App) newDiagram(ctx context.Context) error {
	title, err := getSimpleText(a.reader, "Enter title (empty for default)", a.out)
	if err != nil {
		return err
	}
	content, err := getMultiline(a.reader, "Enter diagram JSON (optional)", a.out)
	if err != nil {
		return err
	}

	var raw json.RawMessage
	if content != "" {
		if !json.Valid([]byte(content)) {
			return errors.New("content is not valid JSON")
		}
		raw = json.RawMessage(content)
	}

	d, err := a.api.CreateDiagram(ctx, title, raw)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created diagram %d %q\n", d.ID, d.Title)
	return nil
}

func (a *App) list(ctx context.Context) error {
	ds, err := a.api.ListDiagrams(ctx)
	if err != nil {
		return err
	}
	if len(ds) == 0 {
		fmt.Fprintln(a.out, "No diagrams")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tUPDATED\tSHARED")
	for _, d := range ds {
		shared := ""
		if d.ShareUUID != nil {
			shared = *d.ShareUUID
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", d.ID, d.Title, d.UpdatedAt.Format("2006-01-02 15:04"), shared)
	}
	return tw.Flush()
}

func (a *App) show(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	d, err := a.api.GetDiagram(ctx, id)
	if err != nil {
		return err
	}
	return a.printDiagram(d.ID, d.Title, d.Content)
}

func (a *App) printDiagram(id int64, title string, content json.RawMessage) error {
	fmt.Fprintf(a.out, "%d %s\n", id, title)
	if len(content) == 0 || string(content) == "null" {
		return nil
	}
	pretty, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, string(pretty))
	return nil
}

func (a *App) delete(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	if err := a.api.DeleteDiagram(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted diagram %d\n", id)
	return nil
}

func (a *App) share(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	d, err := a.api.ShareDiagram(ctx, id)
	if err != nil {
		return err
	}
	if d.ShareUUID == nil {
		return errors.New("server returned no share id")
	}
	fmt.Fprintf(a.out, "Shared: %s/shared/%s\n", a.config.ServerURL, *d.ShareUUID)
	return nil
}

func (a *App) export(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	e, err := a.api.ExportDiagram(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Download until %s:\n%s\n", e.ExpiresAt.Local().Format("2006-01-02 15:04"), e.URL)
	return nil
}

func (a *App) shared(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	d, err := a.api.GetShared(ctx, args[0])
	if err != nil {
		return err
	}
	return a.printDiagram(d.ID, d.Title, d.Content)
}
