package audit

import "strings"

// ActionResource holds action and resource derived from a gRPC full method name.
type ActionResource struct {
	Action   string
	Resource string
}

// ParseFullMethod returns action and resource for a gRPC full method
// (e.g. /geoqueue.ticket.v1.TicketService/VerifyTicket -> verify, ticket).
// Action is the leading verb of the method name, lowercased; the noun the verb applies to is dropped.
// Resource is derived from the service name (TicketService -> ticket).
func ParseFullMethod(fullMethod string) ActionResource {
	slash := strings.LastIndex(fullMethod, "/")
	if slash < 0 {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	method := fullMethod[slash+1:]
	beforeSlash := fullMethod[:slash]
	dot := strings.LastIndex(beforeSlash, ".")
	if dot < 0 {
		return ActionResource{Action: strings.ToLower(method), Resource: "unknown"}
	}
	return ActionResource{
		Action:   methodToAction(method),
		Resource: serviceToResource(beforeSlash[dot+1:]),
	}
}

func serviceToResource(serviceName string) string {
	// TicketService -> ticket, AuditService -> audit
	s := strings.TrimSuffix(serviceName, "Service")
	if s == "" {
		return "unknown"
	}
	return strings.ToLower(s[0:1]) + s[1:]
}

var verbs = []string{"Allocate", "Verify", "Get", "List", "Create", "Update", "Delete", "Issue"}

func methodToAction(method string) string {
	for _, v := range verbs {
		if strings.HasPrefix(method, v) && method != v {
			return strings.ToLower(v)
		}
	}
	return strings.ToLower(method)
}
