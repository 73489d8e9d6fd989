package netconf

import "encoding/xml"

// Datastores.
const (
	Running   = "running"
	Candidate = "candidate"
	Startup   = "startup"
)

// datastoreRef renders <name/>; encoding/xml never self-closes and some devices insist.
type datastoreRef struct {
	Inner string `xml:",innerxml"`
}

func datastore(name string) *datastoreRef {
	return &datastoreRef{Inner: "<" + name + "/>"}
}

type subtreeFilter struct {
	XMLName xml.Name `xml:"filter"`
	Type    string   `xml:"type,attr"`
	*Payload
}

func filterFor(subtree string) *subtreeFilter {
	if subtree == "" {
		return nil
	}
	return &subtreeFilter{Type: "subtree", Payload: NewPayload(subtree)}
}

type configBody struct {
	XMLName xml.Name `xml:"config"`
	*Payload
}

type getOp struct {
	XMLName xml.Name `xml:"get"`
	Filter  *subtreeFilter
}

type getConfigOp struct {
	XMLName xml.Name      `xml:"get-config"`
	Source  *datastoreRef `xml:"source"`
	Filter  *subtreeFilter
}

type editConfigOp struct {
	XMLName          xml.Name      `xml:"edit-config"`
	Target           *datastoreRef `xml:"target"`
	DefaultOperation string        `xml:"default-operation,omitempty"`
	Config           *configBody
}

type lockOp struct {
	XMLName xml.Name      `xml:"lock"`
	Target  *datastoreRef `xml:"target"`
}

type unlockOp struct {
	XMLName xml.Name      `xml:"unlock"`
	Target  *datastoreRef `xml:"target"`
}

type validateOp struct {
	XMLName xml.Name      `xml:"validate"`
	Source  *datastoreRef `xml:"source"`
}

type commitOp struct {
	XMLName xml.Name `xml:"commit"`
}

type discardOp struct {
	XMLName xml.Name `xml:"discard-changes"`
}

type closeSessionOp struct {
	XMLName xml.Name `xml:"close-session"`
}

// JunOS extensions.

type commandOp struct {
	XMLName xml.Name `xml:"command"`
	Format  string   `xml:"format,attr,omitempty"`
	Command string   `xml:",chardata"`
}

// loadConfigurationOp loads set statements into the candidate.
type loadConfigurationOp struct {
	XMLName xml.Name `xml:"load-configuration"`
	Action  string   `xml:"action,attr"`
	Format  string   `xml:"format,attr"`
	Set     string   `xml:"configuration-set"`
}

// getConfigurationOp with Compare set returns the diff against a rollback.
type getConfigurationOp struct {
	XMLName  xml.Name `xml:"get-configuration"`
	Compare  string   `xml:"compare,attr,omitempty"`
	Rollback string   `xml:"rollback,attr,omitempty"`
	Format   string   `xml:"format,attr,omitempty"`
}
