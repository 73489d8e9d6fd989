package manager

import (
	"context"
	"testing"

	"github.com/beevik/etree"
	"github.com/damianoneill/nocexec/driver"
	"github.com/damianoneill/nocexec/driver/mocks"
	"github.com/damianoneill/nocexec/expect"
	"github.com/damianoneill/nocexec/netconf"
	"github.com/damianoneill/nocexec/session"
	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	assert "github.com/stretchr/testify/require"
)

func shellManager(t *testing.T, name, prepare string, host string) (*Manager, *mocks.MockShell) {
	ctrl := gomock.NewController(t)
	shell := mocks.NewMockShell(ctrl)
	shell.EXPECT().
		Execute(gomock.Any(), prepare, gomock.Any(), gomock.Any()).
		Return(&expect.Result{Lines: []string{host}, Index: 1}, nil)

	m, err := New(name, &session.Config{Host: "192.0.2.10"}, WithDriverOptions(
		driver.WithShellOpener(func(context.Context, *session.Config) (driver.Shell, error) { return shell, nil }),
	))
	assert.NoError(t, err)
	assert.NoError(t, m.Connect(context.Background()))
	return m, shell
}

func viewReturns(shell *mocks.MockShell, command string, lines ...string) {
	shell.EXPECT().
		Execute(gomock.Any(), command, gomock.Any(), gomock.Any()).
		Return(&expect.Result{Lines: lines}, nil)
}

func TestIOSInventory(t *testing.T) {
	m, shell := shellManager(t, driver.CiscoIOS, "terminal length 0", "access1")

	viewReturns(shell, "show interfaces description",
		"Interface                      Status         Protocol Description",
		"Gi0/1                          up             up       uplink to core",
		"Gi0/2                          admin down     down     ",
		"Vl10                           up             down     users")
	ports, err := m.GetPorts(context.Background())
	assert.NoError(t, err)
	if diff := cmp.Diff([]Port{
		{Name: "Gi0/1", Description: "uplink to core", AdminStatus: true, OperStatus: true},
		{Name: "Gi0/2"},
		{Name: "Vl10", Description: "users", AdminStatus: true},
	}, ports); diff != "" {
		t.Errorf("ports mismatch (-want +got):\n%s", diff)
	}

	viewReturns(shell, "show mac address-table",
		"          Mac Address Table",
		"-------------------------------------------",
		"Vlan    Mac Address       Type        Ports",
		"----    -----------       --------    -----",
		"  10    e205.71be.c240    DYNAMIC     Gi1/0",
		"  12    e20d.cd16.3a1b    DYNAMIC     Gi1/0",
		"Total Mac Addresses for this criterion: 2")
	fdb, err := m.GetFDB(context.Background())
	assert.NoError(t, err)
	if diff := cmp.Diff([]FDBEntry{
		{MAC: "e2:05:71:be:c2:40", VLAN: "10", Port: "Gi1/0"},
		{MAC: "e2:0d:cd:16:3a:1b", VLAN: "12", Port: "Gi1/0"},
	}, fdb); diff != "" {
		t.Errorf("fdb mismatch (-want +got):\n%s", diff)
	}

	viewReturns(shell, "show vlan brief",
		"VLAN Name                             Status    Ports",
		"---- -------------------------------- --------- -------------------------------",
		"1    default                          active    Gi0/3, Gi0/4",
		"10   users                            active    Gi0/1",
		"1002 fddi-default                     act/unsup ")
	vlans, err := m.GetVLANs(context.Background())
	assert.NoError(t, err)
	if diff := cmp.Diff([]VLAN{{Tag: "1", Name: "default"}, {Tag: "10", Name: "users"}, {Tag: "1002", Name: "fddi-default"}}, vlans); diff != "" {
		t.Errorf("vlans mismatch (-want +got):\n%s", diff)
	}
}

func TestXOSInventory(t *testing.T) {
	m, shell := shellManager(t, driver.ExtremeXOS, "disable clipaging", "* sw1")

	viewReturns(shell, "show ports no-refresh",
		"Port     State  Link  Description",
		"1        E      A     uplink",
		"2        D      R")
	ports, err := m.GetPorts(context.Background())
	assert.NoError(t, err)
	if diff := cmp.Diff([]Port{
		{Name: "1", Description: "uplink", AdminStatus: true, OperStatus: true},
		{Name: "2"},
	}, ports); diff != "" {
		t.Errorf("ports mismatch (-want +got):\n%s", diff)
	}

	viewReturns(shell, "show fdb",
		"MAC                VLAN Name( Tag)  Age  Flags         Port / Virtual Port List",
		"------------------------------------------------------------------------------",
		"00:04:96:51:07:AA  v10(0010)        0000 d m            1",
		"fe:84:e9:4c:91:37  v110(0110)       0120 d m            1:17")
	fdb, err := m.GetFDB(context.Background())
	assert.NoError(t, err)
	if diff := cmp.Diff([]FDBEntry{
		{MAC: "00:04:96:51:07:aa", VLAN: "0010", Port: "1"},
		{MAC: "fe:84:e9:4c:91:37", VLAN: "0110", Port: "1:17"},
	}, fdb); diff != "" {
		t.Errorf("fdb mismatch (-want +got):\n%s", diff)
	}
}

func TestJunOSInventory(t *testing.T) {
	ctrl := gomock.NewController(t)
	rpc := mocks.NewMockRPC(ctrl)

	m, err := New(driver.JuniperJunOS, &session.Config{Protocol: session.NETCONF, Host: "ex1"}, WithDriverOptions(
		driver.WithRPCOpener(func(context.Context, *session.Config) (driver.RPC, error) { return rpc, nil }),
	))
	assert.NoError(t, err)
	assert.NoError(t, m.Connect(context.Background()))

	table, err := netconf.ParseReply([]byte(`<rpc-reply message-id="2">
<ethernet-switching-table-information style="brief">
  <ethernet-switching-table style="brief">
    <mac-table-entry style="brief">
      <mac-vlan>hosting</mac-vlan>
      <mac-address>*</mac-address>
      <mac-interfaces-list><mac-interfaces>All-members</mac-interfaces></mac-interfaces-list>
    </mac-table-entry>
    <mac-table-entry style="brief">
      <mac-vlan>hosting</mac-vlan>
      <mac-address>00:00:5e:00:01:0a</mac-address>
      <mac-interfaces-list><mac-interfaces>xe-0/1/1.0</mac-interfaces></mac-interfaces-list>
    </mac-table-entry>
    <mac-table-count>2</mac-table-count>
  </ethernet-switching-table>
</ethernet-switching-table-information>
</rpc-reply>`))
	assert.NoError(t, err)
	rpc.EXPECT().Command(gomock.Any(), "show ethernet-switching table", netconf.FormatXML).Return(table, nil)

	fdb, err := m.GetFDB(context.Background())
	assert.NoError(t, err)
	if diff := cmp.Diff([]FDBEntry{{MAC: "00:00:5e:00:01:0a", VLAN: "hosting", Port: "xe-0/1/1.0"}}, fdb); diff != "" {
		t.Errorf("fdb mismatch (-want +got):\n%s", diff)
	}

	ifaces, err := netconf.ParseReply([]byte(`<rpc-reply message-id="3"><interface-information>
<physical-interface><name>ge-0/0/0</name><admin-status>up</admin-status><oper-status>down</oper-status><description>to-core</description></physical-interface>
</interface-information></rpc-reply>`))
	assert.NoError(t, err)
	rpc.EXPECT().Command(gomock.Any(), "show interfaces descriptions", netconf.FormatXML).Return(ifaces, nil)

	ports, err := m.GetPorts(context.Background())
	assert.NoError(t, err)
	if diff := cmp.Diff([]Port{{Name: "ge-0/0/0", Description: "to-core", AdminStatus: true}}, ports); diff != "" {
		t.Errorf("ports mismatch (-want +got):\n%s", diff)
	}

	rpc.EXPECT().Close().Return(nil)
	assert.NoError(t, m.Close())
}

func TestUnknownDriver(t *testing.T) {
	_, err := New("CiscoNXOS", &session.Config{})
	assert.EqualError(t, err, `driver "CiscoNXOS" not found`)
}

func TestUnixMAC(t *testing.T) {
	for in, want := range map[string]string{
		"e205.71be.c240":    "e2:05:71:be:c2:40",
		"E2-05-71-BE-C2-40": "e2:05:71:be:c2:40",
		"e2:05:71:be:c2:40": "e2:05:71:be:c2:40",
		"e20571bec240":      "e2:05:71:be:c2:40",
	} {
		got, ok := UnixMAC(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"*", "", "e205.71be.c24", "g205.71be.c240"} {
		_, ok := UnixMAC(bad)
		assert.False(t, ok, bad)
	}
}

func TestRPCToMap(t *testing.T) {
	doc := etree.NewDocument()
	assert.NoError(t, doc.ReadFromString(`<vlan-information>
  <vlan><vlan-name>default</vlan-name><vlan-tag>1</vlan-tag></vlan>
  <vlan><vlan-name>users</vlan-name><vlan-tag>10</vlan-tag></vlan>
  <summary><count>2</count></summary>
  <note>two
vlans</note>
</vlan-information>`))

	want := map[string]interface{}{
		"vlan": []map[string]interface{}{
			{"vlan-name": "default", "vlan-tag": "1"},
			{"vlan-name": "users", "vlan-tag": "10"},
		},
		"summary": map[string]interface{}{"count": "2"},
		"note":    "twovlans",
	}
	if diff := cmp.Diff(want, RPCToMap(doc.Root())); diff != "" {
		t.Errorf("map mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "2", lookup(RPCToMap(doc.Root()), "summary/count"))
	assert.Empty(t, RPCToMap(nil))
}
