package router

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/dreamware/cachecluster/internal/wire"
)

// Facade exposes the Router service's five RPCs (Get/Put/Delete/Join/
// Leave) as HTTP handlers atop a Dispatcher and a Membership controller.
// HealthProbe is optional: when set, GET /nodes includes each node's
// last-observed health status alongside ring membership.
type Facade struct {
	Dispatcher  *Dispatcher
	Membership  *Membership
	HealthProbe *HealthProbe
}

// Routes registers the Router service's paths on mux.
func (f *Facade) Routes(mux *http.ServeMux) {
	mux.Handle(wire.PathRouterGet, wire.ServeRPC(f.handleGet))
	mux.Handle(wire.PathRouterPut, wire.ServeRPC(f.handlePut))
	mux.Handle(wire.PathRouterDelete, wire.ServeRPC(f.handleDelete))
	mux.Handle(wire.PathRouterJoin, wire.ServeRPC(f.handleJoin))
	mux.Handle(wire.PathRouterLeave, wire.ServeRPC(f.handleLeave))
}

// nodeEntry is one row of the GET /nodes response.
type nodeEntry struct {
	Addr   string `json:"addr"`
	Status string `json:"status,omitempty"`
}

// nodesResponse is the GET /nodes response body, generalizing torua's
// handleListNodes ({"nodes": [...]}) from explicit node IDs to this
// system's address-identified ring membership.
type nodesResponse struct {
	Nodes []nodeEntry `json:"nodes"`
}

// NodesHandler serves GET /nodes: the current ring membership plus, when
// a HealthProbe is wired, each node's last-observed health status. This
// is the router half of the introspection surface SPEC_FULL.md §4
// commits to.
func (f *Facade) NodesHandler(w http.ResponseWriter, _ *http.Request) {
	var statuses map[string]string
	if f.HealthProbe != nil {
		statuses = f.HealthProbe.Status()
	}

	addrs := f.Dispatcher.Ring.Nodes()
	resp := nodesResponse{Nodes: make([]nodeEntry, len(addrs))}
	for i, addr := range addrs {
		resp.Nodes[i] = nodeEntry{Addr: addr, Status: statuses[addr]}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// callerKey derives the rate-limiter's sharding key from the request's
// source address, so unrelated clients land on independent token
// buckets rather than contending on one global counter.
func callerKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (f *Facade) handleGet(r *http.Request, body []byte) (any, error) {
	var req wire.GetRequest
	if err := wire.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	return f.Dispatcher.Get(r.Context(), callerKey(r), req)
}

func (f *Facade) handlePut(r *http.Request, body []byte) (any, error) {
	var req wire.PutRequest
	if err := wire.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	return f.Dispatcher.Put(r.Context(), callerKey(r), req)
}

func (f *Facade) handleDelete(r *http.Request, body []byte) (any, error) {
	var req wire.DeleteRequest
	if err := wire.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	return f.Dispatcher.Delete(r.Context(), callerKey(r), req)
}

func (f *Facade) handleJoin(r *http.Request, body []byte) (any, error) {
	var req wire.JoinRequest
	if err := wire.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	if err := f.Membership.Join(req.Address); err != nil {
		return nil, err
	}
	return wire.JoinResponse{Successful: true}, nil
}

func (f *Facade) handleLeave(r *http.Request, body []byte) (any, error) {
	var req wire.LeaveRequest
	if err := wire.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	if err := f.Membership.Leave(req.Address); err != nil {
		return nil, err
	}
	return wire.LeaveResponse{Successful: true}, nil
}
