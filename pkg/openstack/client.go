// Package openstack adapts github.com/gophercloud/gophercloud/v2 into the
// 4-interface external infrastructure client spec.md §6 describes
// (identity/keystone, compute/nova, orchestration/heat, metrics/ceilometer),
// grounded on the gophercloud usage in
// other_examples/1ce9b7bd_jorgemarey-nomad-nova-autoscaler (the only
// OpenStack-facing Go in the retrieved corpus).
package openstack

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/flavors"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/hypervisors"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/servers"
	"github.com/gophercloud/gophercloud/v2/openstack/identity/v3/projects"
	"github.com/gophercloud/gophercloud/v2/openstack/orchestration/v1/resources"
	"github.com/gophercloud/gophercloud/v2/openstack/orchestration/v1/stacks"

	"github.com/IntelLabsEurope/adaptationengine/pkg/registry"
)

// Credentials configures the keystone authentication the client uses to
// scope identity/compute/orchestration clients per tenant.
type Credentials struct {
	AuthURL    string
	Username   string
	Password   string
	DomainName string
	RegionName string
}

// Client implements registry.OrchestrationAPI and the enactor-facing
// infrastructure operations spec.md §6 enumerates.
type Client struct {
	creds    Credentials
	provider *gophercloud.ProviderClient
}

// New authenticates against keystone and returns a ready Client.
func New(ctx context.Context, creds Credentials) (*Client, error) {
	provider, err := openstack.NewClient(creds.AuthURL)
	if err != nil {
		return nil, fmt.Errorf("openstack: creating provider client: %w", err)
	}
	err = openstack.AuthenticateV3(ctx, provider, &gophercloud.AuthOptions{
		IdentityEndpoint: creds.AuthURL,
		Username:         creds.Username,
		Password:         creds.Password,
		DomainName:       creds.DomainName,
		AllowReauth:      true,
	}, gophercloud.EndpointOpts{Region: creds.RegionName})
	if err != nil {
		return nil, fmt.Errorf("openstack: authenticating: %w", err)
	}
	return &Client{creds: creds, provider: provider}, nil
}

func (c *Client) identityClient() (*gophercloud.ServiceClient, error) {
	return openstack.NewIdentityV3(c.provider, gophercloud.EndpointOpts{Region: c.creds.RegionName})
}

func (c *Client) computeClient(tenantID string) (*gophercloud.ServiceClient, error) {
	return openstack.NewComputeV2(c.provider, gophercloud.EndpointOpts{Region: c.creds.RegionName, AvailabilityZone: ""})
}

func (c *Client) orchestrationClient(tenantID string) (*gophercloud.ServiceClient, error) {
	return openstack.NewOrchestrationV1(c.provider, gophercloud.EndpointOpts{Region: c.creds.RegionName})
}

// ListTenants returns every project's id (spec.md §4.B recoverState).
func (c *Client) ListTenants(ctx context.Context) ([]string, error) {
	identity, err := c.identityClient()
	if err != nil {
		return nil, err
	}
	pages, err := projects.List(identity, projects.ListOpts{}).AllPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("openstack: listing projects: %w", err)
	}
	all, err := projects.ExtractProjects(pages)
	if err != nil {
		return nil, fmt.Errorf("openstack: extracting projects: %w", err)
	}
	ids := make([]string, len(all))
	for i, p := range all {
		ids[i] = p.ID
	}
	return ids, nil
}

// ListStacks returns every stack id owned by tenantID.
func (c *Client) ListStacks(ctx context.Context, tenantID string) ([]string, error) {
	heat, err := c.orchestrationClient(tenantID)
	if err != nil {
		return nil, err
	}
	pages, err := stacks.List(heat, stacks.ListOpts{}).AllPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("openstack: listing stacks: %w", err)
	}
	all, err := stacks.ExtractStacks(pages)
	if err != nil {
		return nil, fmt.Errorf("openstack: extracting stacks: %w", err)
	}
	ids := make([]string, len(all))
	for i, s := range all {
		ids[i] = s.ID
	}
	return ids, nil
}

// ListResources returns every resource of stackID.
func (c *Client) ListResources(ctx context.Context, tenantID, stackID string) ([]registry.ResourceDescriptor, error) {
	heat, err := c.orchestrationClient(tenantID)
	if err != nil {
		return nil, err
	}
	pages, err := resources.List(heat, stackID, stackID, resources.ListOpts{}).AllPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("openstack: listing resources for stack %s: %w", stackID, err)
	}
	all, err := resources.ExtractResources(pages)
	if err != nil {
		return nil, fmt.Errorf("openstack: extracting resources: %w", err)
	}
	out := make([]registry.ResourceDescriptor, len(all))
	for i, r := range all {
		out[i] = registry.ResourceDescriptor{
			ResourceID:   r.Name,
			ResourceType: r.Type,
			PhysicalID:   r.PhysicalID,
		}
	}
	return out, nil
}

// StackTemplate fetches stackID's Heat template, decoded into a generic map.
func (c *Client) StackTemplate(ctx context.Context, tenantID, stackID string) (map[string]interface{}, error) {
	heat, err := c.orchestrationClient(tenantID)
	if err != nil {
		return nil, err
	}
	tmpl, err := stacks.GetTemplate(ctx, heat, stackID, stackID).Extract()
	if err != nil {
		return nil, fmt.Errorf("openstack: fetching template for stack %s: %w", stackID, err)
	}
	var out map[string]interface{}
	if err := tmpl.Parse(&out); err != nil {
		return nil, fmt.Errorf("openstack: parsing template for stack %s: %w", stackID, err)
	}
	return out, nil
}

// UpdateStackTemplate pushes an updated template, used by HorizontalScale
// enactment (spec.md §4.G).
func (c *Client) UpdateStackTemplate(ctx context.Context, tenantID, stackID string, template map[string]interface{}) error {
	heat, err := c.orchestrationClient(tenantID)
	if err != nil {
		return err
	}
	_, err = stacks.Update(ctx, heat, stackID, stackID, stacks.UpdateOpts{TemplateOpts: &stacks.Template{
		TE: stacks.TE{Bin: mustMarshal(template)},
	}}).Extract()
	if err != nil {
		return fmt.Errorf("openstack: updating stack %s: %w", stackID, err)
	}
	return nil
}

// ListServers returns the VM-to-hypervisor mapping for stackID's servers,
// used to populate registry.ActiveVMs.
func (c *Client) ListServers(ctx context.Context, tenantID, stackID string) ([]registry.VMLocation, error) {
	compute, err := c.computeClient(tenantID)
	if err != nil {
		return nil, err
	}
	pages, err := servers.List(compute, servers.ListOpts{}).AllPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("openstack: listing servers: %w", err)
	}
	all, err := servers.ExtractServers(pages)
	if err != nil {
		return nil, fmt.Errorf("openstack: extracting servers: %w", err)
	}
	out := make([]registry.VMLocation, 0, len(all))
	for _, s := range all {
		hv, _ := s.Metadata["OS-EXT-SRV-ATTR:hypervisor_hostname"].(string)
		out = append(out, registry.VMLocation{VMID: s.ID, Hypervisor: hv})
	}
	return out, nil
}

// LiveMigrate requests a live migration of target to destination host.
func (c *Client) LiveMigrate(ctx context.Context, tenantID, target, destination string) error {
	compute, err := c.computeClient(tenantID)
	if err != nil {
		return err
	}
	err = servers.LiveMigrate(ctx, compute, target, servers.LiveMigrateOpts{Host: &destination}).ExtractErr()
	if err != nil {
		return fmt.Errorf("openstack: live-migrating %s to %s: %w", target, destination, err)
	}
	return nil
}

// Resize changes target's flavor.
func (c *Client) Resize(ctx context.Context, tenantID, target, flavorID string) error {
	compute, err := c.computeClient(tenantID)
	if err != nil {
		return err
	}
	err = servers.Resize(ctx, compute, target, servers.ResizeOpts{FlavorRef: flavorID}).ExtractErr()
	if err != nil {
		return fmt.Errorf("openstack: resizing %s to flavor %s: %w", target, flavorID, err)
	}
	return nil
}

// FlavorIDByName looks up a flavor id by its display name.
func (c *Client) FlavorIDByName(ctx context.Context, tenantID, name string) (string, error) {
	compute, err := c.computeClient(tenantID)
	if err != nil {
		return "", err
	}
	pages, err := flavors.ListDetail(compute, flavors.ListOpts{}).AllPages(ctx)
	if err != nil {
		return "", fmt.Errorf("openstack: listing flavors: %w", err)
	}
	all, err := flavors.ExtractFlavors(pages)
	if err != nil {
		return "", fmt.Errorf("openstack: extracting flavors: %w", err)
	}
	for _, f := range all {
		if f.Name == name {
			return f.ID, nil
		}
	}
	return "", fmt.Errorf("openstack: flavor %q not found", name)
}

// Server returns the current server record.
func (c *Client) Server(ctx context.Context, tenantID, target string) (*servers.Server, error) {
	compute, err := c.computeClient(tenantID)
	if err != nil {
		return nil, err
	}
	s, err := servers.Get(ctx, compute, target).Extract()
	if err != nil {
		return nil, fmt.Errorf("openstack: fetching server %s: %w", target, err)
	}
	return s, nil
}

// serverExtended decodes the Nova extended-attribute fields pollMigrateComplete
// and pollPowerState need. It does not embed servers.Server: that type's own
// UnmarshalJSON would be promoted and leave these fields undecoded.
type serverExtended struct {
	Host       string `json:"OS-EXT-SRV-ATTR:hypervisor_hostname"`
	PowerState int    `json:"OS-EXT-STS:power_state"`
}

// ServerHost returns the hypervisor hostname target currently runs on, for
// pollMigrateComplete.
func (c *Client) ServerHost(ctx context.Context, tenantID, target string) (string, error) {
	compute, err := c.computeClient(tenantID)
	if err != nil {
		return "", err
	}
	var out serverExtended
	if err := servers.Get(ctx, compute, target).ExtractInto(&out); err != nil {
		return "", fmt.Errorf("openstack: fetching server %s: %w", target, err)
	}
	return out.Host, nil
}

// ServerPowerState returns target's Nova power_state code (0 NOSTATE, 1
// RUNNING, 4 SHUTDOWN, ...), for pollPowerState.
func (c *Client) ServerPowerState(ctx context.Context, tenantID, target string) (int, error) {
	compute, err := c.computeClient(tenantID)
	if err != nil {
		return 0, err
	}
	var out serverExtended
	if err := servers.Get(ctx, compute, target).ExtractInto(&out); err != nil {
		return 0, fmt.Errorf("openstack: fetching server %s: %w", target, err)
	}
	return out.PowerState, nil
}

// Start/Stop issue the corresponding VM power operation.
func (c *Client) Start(ctx context.Context, tenantID, target string) error {
	compute, err := c.computeClient(tenantID)
	if err != nil {
		return err
	}
	if err := servers.Start(ctx, compute, target).ExtractErr(); err != nil {
		return fmt.Errorf("openstack: starting %s: %w", target, err)
	}
	return nil
}

func (c *Client) Stop(ctx context.Context, tenantID, target string) error {
	compute, err := c.computeClient(tenantID)
	if err != nil {
		return err
	}
	if err := servers.Stop(ctx, compute, target).ExtractErr(); err != nil {
		return fmt.Errorf("openstack: stopping %s: %w", target, err)
	}
	return nil
}

// mustMarshal re-encodes a decoded template map back to the wire bytes
// stacks.Update expects; template came from json.Unmarshal so this cannot
// fail.
func mustMarshal(v map[string]interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("openstack: re-marshaling template: %v", err))
	}
	return b
}

// HypervisorSearch returns hypervisors whose hostname contains
// hostnameSubstr (every hypervisor when it is empty).
func (c *Client) HypervisorSearch(ctx context.Context, tenantID, hostnameSubstr string) ([]hypervisors.Hypervisor, error) {
	compute, err := c.computeClient(tenantID)
	if err != nil {
		return nil, err
	}
	pages, err := hypervisors.List(compute, nil).AllPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("openstack: listing hypervisors: %w", err)
	}
	all, err := hypervisors.ExtractHypervisors(pages)
	if err != nil {
		return nil, fmt.Errorf("openstack: extracting hypervisors: %w", err)
	}
	var out []hypervisors.Hypervisor
	for _, h := range all {
		if strings.Contains(h.HypervisorHostname, hostnameSubstr) {
			out = append(out, h)
		}
	}
	return out, nil
}
