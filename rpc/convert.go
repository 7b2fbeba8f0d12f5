package rpc

import (
	"fmt"
	"net/netip"

	"github.com/davidbalbert/globalrouting/ospf"
	"github.com/davidbalbert/globalrouting/rib"
	"google.golang.org/protobuf/types/known/structpb"
)

func addrString(a netip.Addr) string {
	if !a.IsValid() {
		return ""
	}

	return a.String()
}

func parseAddr(s string) (netip.Addr, error) {
	if s == "" {
		return netip.Addr{}, nil
	}

	return netip.ParseAddr(s)
}

func RoutesToProto(routes []rib.Route) (*structpb.ListValue, error) {
	values := make([]any, len(routes))
	for i, r := range routes {
		values[i] = map[string]any{
			"destination": r.Destination.String(),
			"next_hop":    addrString(r.NextHop),
			"if_index":    float64(r.IfIndex),
			"metric":      float64(r.Metric),
			"origin":      float64(r.Origin),
		}
	}

	return structpb.NewList(values)
}

func RoutesFromProto(list *structpb.ListValue) ([]rib.Route, error) {
	routes := make([]rib.Route, 0, len(list.GetValues()))

	for i, v := range list.GetValues() {
		fields := v.GetStructValue().GetFields()
		if fields == nil {
			return nil, fmt.Errorf("route %d: not a struct", i)
		}

		dst, err := netip.ParsePrefix(fields["destination"].GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("route %d: %w", i, err)
		}

		nextHop, err := parseAddr(fields["next_hop"].GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("route %d: %w", i, err)
		}

		routes = append(routes, rib.Route{
			Destination: dst,
			NextHop:     nextHop,
			IfIndex:     uint32(fields["if_index"].GetNumberValue()),
			Metric:      uint32(fields["metric"].GetNumberValue()),
			Origin:      rib.Origin(fields["origin"].GetNumberValue()),
		})
	}

	return routes, nil
}

// InterfaceState is a request to bring a router's interface up or down.
type InterfaceState struct {
	Router    string
	Interface string
	Up        bool
}

func InterfaceStateToProto(st InterfaceState) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"router":    st.Router,
		"interface": st.Interface,
		"up":        st.Up,
	})
}

func InterfaceStateFromProto(s *structpb.Struct) (InterfaceState, error) {
	fields := s.GetFields()

	var st InterfaceState
	for _, key := range []string{"router", "interface"} {
		if _, ok := fields[key].GetKind().(*structpb.Value_StringValue); !ok {
			return st, fmt.Errorf("interface state: %s: not a string", key)
		}
	}

	up, ok := fields["up"].GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return st, fmt.Errorf("interface state: up: not a bool")
	}

	st.Router = fields["router"].GetStringValue()
	st.Interface = fields["interface"].GetStringValue()
	st.Up = up.BoolValue

	return st, nil
}

func LSAsToProto(lsas []*ospf.LSA) (*structpb.ListValue, error) {
	values := make([]any, len(lsas))

	for i, lsa := range lsas {
		links := make([]any, len(lsa.Links))
		for j, l := range lsa.Links {
			links[j] = map[string]any{
				"type":      float64(l.Type),
				"link_id":   addrString(l.LinkID),
				"link_data": addrString(l.LinkData),
				"metric":    float64(l.Metric),
			}
		}

		attached := make([]any, len(lsa.AttachedRouters))
		for j, a := range lsa.AttachedRouters {
			attached[j] = a.String()
		}

		values[i] = map[string]any{
			"type":               float64(lsa.Type),
			"link_state_id":      addrString(lsa.LinkStateID),
			"advertising_router": addrString(lsa.AdvertisingRouter),
			"network_mask":       addrString(lsa.NetworkMask),
			"links":              links,
			"attached_routers":   attached,
		}
	}

	return structpb.NewList(values)
}

func LSAsFromProto(list *structpb.ListValue) ([]*ospf.LSA, error) {
	lsas := make([]*ospf.LSA, 0, len(list.GetValues()))

	for i, v := range list.GetValues() {
		fields := v.GetStructValue().GetFields()
		if fields == nil {
			return nil, fmt.Errorf("lsa %d: not a struct", i)
		}

		var addrs [3]netip.Addr
		for j, key := range []string{"link_state_id", "advertising_router", "network_mask"} {
			a, err := parseAddr(fields[key].GetStringValue())
			if err != nil {
				return nil, fmt.Errorf("lsa %d: %s: %w", i, key, err)
			}
			addrs[j] = a
		}

		lsa := &ospf.LSA{
			Type:              ospf.LSAType(fields["type"].GetNumberValue()),
			LinkStateID:       addrs[0],
			AdvertisingRouter: addrs[1],
			NetworkMask:       addrs[2],
		}

		for _, lv := range fields["links"].GetListValue().GetValues() {
			lf := lv.GetStructValue().GetFields()

			id, err := parseAddr(lf["link_id"].GetStringValue())
			if err != nil {
				return nil, fmt.Errorf("lsa %d: link id: %w", i, err)
			}

			data, err := parseAddr(lf["link_data"].GetStringValue())
			if err != nil {
				return nil, fmt.Errorf("lsa %d: link data: %w", i, err)
			}

			lsa.Links = append(lsa.Links, ospf.LinkRecord{
				Type:     ospf.LinkType(lf["type"].GetNumberValue()),
				LinkID:   id,
				LinkData: data,
				Metric:   uint16(lf["metric"].GetNumberValue()),
			})
		}

		for _, av := range fields["attached_routers"].GetListValue().GetValues() {
			a, err := netip.ParseAddr(av.GetStringValue())
			if err != nil {
				return nil, fmt.Errorf("lsa %d: attached router: %w", i, err)
			}

			lsa.AttachedRouters = append(lsa.AttachedRouters, a)
		}

		lsas = append(lsas, lsa)
	}

	return lsas, nil
}
