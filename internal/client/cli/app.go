package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/profilekeeper/internal/client/client"
	"github.com/dmitrijs2005/profilekeeper/internal/common"
)

// API is the part of *client.Client the commands use.
type API interface {
	Create(ctx context.Context, fields map[string]any) (string, error)
	Login(ctx context.Context, email, password string) (client.LoginResult, error)
	Update(ctx context.Context, username string, profile map[string]string) (string, error)
	Classify(ctx context.Context, username string) (client.ClassifyResult, error)
	Recommendations(ctx context.Context, username string) (client.Recommendations, error)
	Ping(ctx context.Context) error
}

type App struct {
	api    API
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(api API, in io.Reader, out io.Writer) *App {
	return &App{api: api, reader: bufio.NewReader(in), out: out}
}

type createInput struct {
	username string
	email    string
	fields   []string
	profile  []string
}

func (a *App) Create(ctx context.Context, in createInput) error {
	var err error
	if in.username, err = a.valueOrPrompt(in.username, "Username"); err != nil {
		return err
	}
	if in.email, err = a.valueOrPrompt(in.email, "Email"); err != nil {
		return err
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	extra, err := ParsePairs(in.fields)
	if err != nil {
		return err
	}
	profile, err := a.profileOrPrompt(in.profile)
	if err != nil {
		return err
	}

	fields := make(map[string]any, len(extra)+4)
	for k, v := range extra {
		fields[k] = v
	}
	fields["username"] = in.username
	fields["email"] = in.email
	fields["password"] = password
	if len(profile) > 0 {
		fields["profile"] = profile
	}

	msg, err := a.api.Create(ctx, fields)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func (a *App) Login(ctx context.Context, email string) error {
	email, err := a.valueOrPrompt(email, "Email")
	if err != nil {
		return err
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	res, err := a.api.Login(ctx, email, password)
	if errors.Is(err, client.ErrUnauthorized) {
		return errors.New(common.MsgInvalidCredentials)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s. Username: %s\n", res.Message, res.Username)
	if res.RiskBucket == "" {
		fmt.Fprintln(a.out, "Risk bucket: not classified yet")
	} else {
		fmt.Fprintf(a.out, "Risk bucket: %s\n", res.RiskBucket)
	}
	return nil
}

func (a *App) Update(ctx context.Context, username string, pairs []string) error {
	profile, err := a.profileOrPrompt(pairs)
	if err != nil {
		return err
	}
	if len(profile) == 0 {
		return errors.New("nothing to update: no profile answers given")
	}

	msg, err := a.api.Update(ctx, username, profile)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func (a *App) Classify(ctx context.Context, username string) error {
	res, err := a.api.Classify(ctx, username)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: %s\n", res.Message, res.RiskBucket)
	return nil
}

func (a *App) Recommendations(ctx context.Context, username string) error {
	res, err := a.api.Recommendations(ctx, username)
	if errors.Is(err, common.ErrNoBucket) {
		return fmt.Errorf("%s: run classify first", common.MsgNoRiskBucket)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Bucket: %s\n", res.Bucket)
	var picks bytes.Buffer
	if err := json.Indent(&picks, res.Picks, "", "  "); err != nil {
		picks.Reset()
		picks.Write(res.Picks)
	}
	fmt.Fprintln(a.out, picks.String())
	return nil
}

func (a *App) Ping(ctx context.Context) error {
	if err := a.api.Ping(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "ok")
	return nil
}

func (a *App) valueOrPrompt(v, prompt string) (string, error) {
	if v != "" {
		return v, nil
	}
	v, err := GetSimpleText(a.reader, prompt, a.out)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", prompt, err)
	}
	if v == "" {
		return "", fmt.Errorf("%s must not be empty", prompt)
	}
	return v, nil
}

func (a *App) profileOrPrompt(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		var err error
		if pairs, err = GetProfileLines(a.reader, a.out); err != nil {
			return nil, err
		}
	}
	return ParsePairs(pairs)
}
