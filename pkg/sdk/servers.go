package sdk

import (
	"net/url"
)

func (c *Client) ListServers() ([]Instance, error) {
	var servers []Instance
	err := c.get("/servers", &servers)
	return servers, err
}

func (c *Client) GetServer(name string) (*Instance, error) {
	var server Instance
	if err := c.get("/servers/"+url.PathEscape(name), &server); err != nil {
		return nil, err
	}
	return &server, nil
}

// Deploy blocks until the deployment finished or failed. Progress for
// req.RequestID is streamed on /ws/progress/{requestId} meanwhile.
func (c *Client) Deploy(req DeployRequest) (*Instance, error) {
	var inst Instance
	if err := c.post("/servers", req, &inst); err != nil {
		return nil, err
	}
	return &inst, nil
}

func (c *Client) DeleteServer(name string, purge bool) error {
	path := "/servers/" + url.PathEscape(name)
	if purge {
		path += "?purge=true"
	}
	return c.delete(path)
}

func (c *Client) Dependencies() (*DependencyReport, error) {
	var report DependencyReport
	if err := c.get("/dependencies", &report); err != nil {
		return nil, err
	}
	return &report, nil
}
