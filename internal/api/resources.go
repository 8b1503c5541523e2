// ABOUTME: Typed wrappers for the management API endpoints.
// ABOUTME: Path parameters are escaped here so callers pass raw values.

package api

import (
	"context"
	"net/url"
	"strconv"
)

func (c *Client) Settings(ctx context.Context) (*Settings, error) {
	var s Settings
	if err := c.Get(ctx, "/auth/settings", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) InstalledPlugins(ctx context.Context) ([]Plugin, error) {
	var plugins []Plugin
	if err := c.Get(ctx, "/plugins", &plugins); err != nil {
		return nil, err
	}
	return plugins, nil
}

func (c *Client) SearchPlugins(ctx context.Context, query string) ([]Plugin, error) {
	var plugins []Plugin
	if err := c.Get(ctx, "/plugins/search/"+url.PathEscape(query), &plugins); err != nil {
		return nil, err
	}
	return plugins, nil
}

// PluginConfig returns the configuration blocks of one plugin.
func (c *Client) PluginConfig(ctx context.Context, name string) ([]ConfigBlock, error) {
	var blocks []ConfigBlock
	if err := c.Get(ctx, "/config-editor/plugin/"+url.PathEscape(name), &blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

func (c *Client) Pairings(ctx context.Context) ([]Pairing, error) {
	var pairings []Pairing
	if err := c.Get(ctx, "/server/pairings", &pairings); err != nil {
		return nil, err
	}
	return pairings, nil
}

// RemovePairingAccessories resets the cached accessories of one pairing.
func (c *Client) RemovePairingAccessories(ctx context.Context, id string) error {
	return c.Delete(ctx, "/server/pairings/"+url.PathEscape(id)+"/accessories", nil)
}

func (c *Client) Users(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.Get(ctx, "/users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) AddUser(ctx context.Context, in UserInput) (*User, error) {
	var u User
	if err := c.Post(ctx, "/users", in, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) UpdateUser(ctx context.Context, id int, in UserInput) (*User, error) {
	var u User
	if err := c.Patch(ctx, "/users/"+strconv.Itoa(id), in, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) DeleteUser(ctx context.Context, id int) error {
	return c.Delete(ctx, "/users/"+strconv.Itoa(id), nil)
}

func (c *Client) ShutdownHost(ctx context.Context) error {
	return c.Put(ctx, "/platform-tools/linux/shutdown-host", struct{}{}, nil)
}

func (c *Client) RestartHost(ctx context.Context) error {
	return c.Put(ctx, "/platform-tools/linux/restart-host", struct{}{}, nil)
}

func (c *Client) CPU(ctx context.Context) (*CPUStatus, error) {
	var s CPUStatus
	if err := c.Get(ctx, "/status/cpu", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) RAM(ctx context.Context) (*RAMStatus, error) {
	var s RAMStatus
	if err := c.Get(ctx, "/status/ram", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SocketURL returns the WebSocket URL of a namespace, carrying the current token.
func (c *Client) SocketURL(namespace string) string {
	u := c.BaseURL()
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = u.Path + "/ws/" + url.PathEscape(namespace)
	q := url.Values{}
	if token := c.Token(); token != "" {
		q.Set("token", token)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
