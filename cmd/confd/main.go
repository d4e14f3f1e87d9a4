// Copyright (c) 2019-2020, AT&T Intellectual Property. All rights reserved.
//
// Copyright (c) 2014-2017 by Brocade Communications Systems, Inc.
// All rights reserved.
//
// SPDX-License-Identifier: LGPL-2.1-only

// confd is the NETCONF/RESTCONF configuration-management daemon (spec.md
// section 6): it loads a YANG schema domain, serves NETCONF over a
// chunked-framed Unix or TCP listener and RESTCONF over native HTTP, and
// backs both with one candidate/running/startup datastore.Store.
package main

import (
	"bufio"
	"fmt"
	"io/ioutil"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/coreos/go-systemd/activation"
	"github.com/spf13/cobra"

	"github.com/netconfd/confd/common"
	"github.com/netconfd/confd/datastore"
	"github.com/netconfd/confd/loadkeys"
	"github.com/netconfd/confd/mount"
	"github.com/netconfd/confd/netconf"
	"github.com/netconfd/confd/restconf"
	"github.com/netconfd/confd/union"
	"github.com/netconfd/confd/yang/data"
	"github.com/netconfd/confd/yang/schema"
)

var (
	optionsFile string
	dumpOptions bool
	opts        Options
)

func main() {
	root := &cobra.Command{
		Use:   "confd",
		Short: "NETCONF/RESTCONF configuration-management daemon",
		RunE:  run,
	}
	flags := root.Flags()
	flags.StringVar(&optionsFile, "config", "", "startup options document (XML, spec.md section 6)")
	flags.BoolVarP(&dumpOptions, "dump-options", "C", false, "print the resolved option set and exit")

	// Individual overrides, applied on top of whatever --config loaded -
	// spec.md section 6: "command-line flags override individual options".
	def := defaultOptions()
	flags.StringVar(&def.YangDir, "yang-dir", def.YangDir, "directory to load YANG modules from")
	flags.StringVar(&def.NetconfSocket, "netconf-socket", def.NetconfSocket, "Unix socket to serve NETCONF on")
	flags.StringVar(&def.NetconfAddr, "netconf-addr", def.NetconfAddr, "TCP address to serve NETCONF on (empty disables)")
	flags.StringVar(&def.RestconfAddr, "restconf-addr", def.RestconfAddr, "TCP address to serve RESTCONF on (empty disables)")
	flags.StringVar(&def.PidFile, "pid-file", def.PidFile, "file to write the daemon's pid to")
	flags.StringVar(&def.StartupFile, "startup-file", def.StartupFile, "XML document to seed the startup datastore from")
	flags.BoolVar(&def.ShareDomains, "share-mount-domains", def.ShareDomains, "share schema-mount domains across identical yang-library advertisements")
	flags.StringVar(&def.LoadKeysList, "loadkeys-list-path", def.LoadKeysList, "non-empty enables the load-key extension; the value is only logged, the target list comes from each request's <config>")
	flags.StringVar(&def.LogLevel, "log-level", def.LogLevel, "none, error or debug")
	opts = def

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if optionsFile != "" {
		fileOpts, err := loadOptionsFile(optionsFile)
		if err != nil {
			return err
		}
		opts = mergeFlagOverrides(fileOpts, cmd)
	}

	if dumpOptions {
		b, err := opts.Dump()
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	}

	level, err := common.MapLevelNameToLevel(opts.LogLevel)
	if err != nil {
		return err
	}
	logger := log.New(os.Stderr, "confd: ", log.LstdFlags)
	logf := func(format string, args ...interface{}) {
		if common.LoggingIsEnabledAtLevel(level, common.TypeCommit) || level == common.LevelDebug {
			logger.Printf(format, args...)
		}
	}

	domain, err := loadDomain(opts.YangDir, opts.Features)
	if err != nil {
		return err
	}

	var mounts *mount.Resolver
	var resolver union.MountResolver
	if opts.ShareDomains || hasFeature(opts.Features, common.MountFeature) {
		mounts = mount.NewResolver(mount.Options{ShareDomains: opts.ShareDomains})
		resolver = mounts
	}

	startupEnabled := opts.StartupFile != "" || hasFeature(opts.Features, common.StartupFeature)
	store := datastore.New(domain, resolver, startupEnabled)
	if opts.StartupFile != "" {
		if err := seedStartup(store, domain, opts.StartupFile); err != nil {
			logf("startup load failed: %v", err)
		}
	}

	binder := &data.Binder{Domain: domain}
	if mounts != nil {
		binder.Mounts = func(mountPoint *data.Node) (*schema.Domain, error) {
			return mounts.DomainFor(mountPoint)
		}
	}

	dispatcher := netconf.NewDispatcher()
	netconf.RegisterBuiltins(dispatcher)
	if opts.LoadKeysList != "" {
		loadkeys.RegisterHandler(dispatcher)
		logf("%s extension enabled against %s", common.LoadKeysFeature, opts.LoadKeysList)
	}

	rcHandler := &restconf.Handler{
		Domain: domain,
		Store:  store,
		Binder: binder,
		RPCs:   map[string]restconf.RPCHandler{},
	}

	if err := writePidFile(opts.PidFile); err != nil {
		logf("pid file: %v", err)
	}
	defer os.Remove(opts.PidFile)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigs
		os.Remove(opts.PidFile)
		os.Exit(0)
	}()

	errc := make(chan error, 2)
	if opts.RestconfAddr != "" {
		go func() { errc <- http.ListenAndServe(opts.RestconfAddr, rcHandler) }()
		logf("restconf listening on %s", opts.RestconfAddr)
	}

	ncListener, err := netconfListener(opts.NetconfSocket, opts.NetconfAddr)
	if err != nil {
		return err
	}
	go func() { errc <- serveNetconf(ncListener, dispatcher, domain, store, binder) }()
	logf("netconf listening on %s", ncListener.Addr())

	return <-errc
}

// mergeFlagOverrides re-applies cobra flags explicitly set on the command
// line over fileOpts, the options document's own values - spec.md section
// 6's "command-line flags override individual options" precedence.
func mergeFlagOverrides(fileOpts Options, cmd *cobra.Command) Options {
	merged := fileOpts
	flags := cmd.Flags()
	if flags.Changed("yang-dir") {
		merged.YangDir, _ = flags.GetString("yang-dir")
	}
	if flags.Changed("netconf-socket") {
		merged.NetconfSocket, _ = flags.GetString("netconf-socket")
	}
	if flags.Changed("netconf-addr") {
		merged.NetconfAddr, _ = flags.GetString("netconf-addr")
	}
	if flags.Changed("restconf-addr") {
		merged.RestconfAddr, _ = flags.GetString("restconf-addr")
	}
	if flags.Changed("pid-file") {
		merged.PidFile, _ = flags.GetString("pid-file")
	}
	if flags.Changed("startup-file") {
		merged.StartupFile, _ = flags.GetString("startup-file")
	}
	if flags.Changed("share-mount-domains") {
		merged.ShareDomains, _ = flags.GetBool("share-mount-domains")
	}
	if flags.Changed("loadkeys-list-path") {
		merged.LoadKeysList, _ = flags.GetString("loadkeys-list-path")
	}
	if flags.Changed("log-level") {
		merged.LogLevel, _ = flags.GetString("log-level")
	}
	return merged
}

// hasFeature reports whether name appears in the daemon's configured
// feature set (common.StartupFeature/MountFeature/LoadKeysFeature), not
// to be confused with a YANG module's own if-feature statements.
func hasFeature(enabledFeatures []string, name string) bool {
	for _, f := range enabledFeatures {
		if f == name {
			return true
		}
	}
	return false
}

func loadDomain(dir string, enabledFeatures []string) (*schema.Domain, error) {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("confd: reading yang-dir %s: %w", dir, err)
	}
	d := schema.NewDomain()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yang") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		text, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("confd: reading %s: %w", path, err)
		}
		if err := d.AddModuleSource(path, text); err != nil {
			return nil, fmt.Errorf("confd: parsing %s: %w", path, err)
		}
	}
	features := map[string]bool{}
	for _, f := range enabledFeatures {
		features[f] = true
	}
	if err := schema.Compile(d, schema.Options{Features: features}); err != nil {
		return nil, fmt.Errorf("confd: compiling yang-dir %s: %w", dir, err)
	}
	return d, nil
}

func seedStartup(store *datastore.Store, domain *schema.Domain, path string) error {
	body, err := ioutil.ReadFile(path)
	if err != nil {
		return err
	}
	binder := &data.Binder{Domain: domain}
	root, err := binder.Bind(body)
	if err != nil {
		return err
	}
	return store.Replace(datastore.Startup, root)
}

func writePidFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return ioutil.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}

// netconfListener prefers a systemd-activated socket (spec.md section 6's
// deployment under a service manager), falling back to binding socketPath
// itself, or tcpAddr if socketPath is empty.
func netconfListener(socketPath, tcpAddr string) (net.Listener, error) {
	listeners, err := activation.Listeners(true)
	if err == nil && len(listeners) > 0 {
		return listeners[0], nil
	}
	if socketPath != "" {
		os.Remove(socketPath)
		if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
			return nil, err
		}
		return net.Listen("unix", socketPath)
	}
	return net.Listen("tcp", tcpAddr)
}

// serveNetconf accepts connections on l and runs the chunked-framed
// request/reply loop (spec.md component F) on each until it closes, one
// netconf.Session per connection.
func serveNetconf(l net.Listener, d *netconf.Dispatcher, domain *schema.Domain, store *datastore.Store, binder *data.Binder) error {
	sessionCounter := 0
	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		sessionCounter++
		sess := &netconf.Session{
			ID:     fmt.Sprintf("%d", sessionCounter),
			Domain: domain,
			Store:  store,
			Binder: binder,
		}
		go handleNetconfConn(conn, d, sess)
	}
}

func handleNetconfConn(conn net.Conn, d *netconf.Dispatcher, sess *netconf.Session) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		msg, err := netconf.ReadChunked(r)
		if err != nil {
			return
		}
		req, err := netconf.ParseRequest(msg)
		if err != nil {
			continue
		}
		if req.Operation == netconf.OpCloseSession {
			reply := d.Dispatch(sess, req)
			replyBytes, _ := reply.Marshal()
			netconf.WriteChunked(conn, replyBytes)
			return
		}
		reply := d.Dispatch(sess, req)
		replyBytes, err := reply.Marshal()
		if err != nil {
			continue
		}
		if err := netconf.WriteChunked(conn, replyBytes); err != nil {
			return
		}
	}
}
