package server

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/dDetect/lib/catalog"
	"github.com/ValentinKolb/dDetect/lib/match"
	"github.com/ValentinKolb/dDetect/rpc/common"
	"github.com/ValentinKolb/dDetect/rpc/serializer"
	"github.com/ValentinKolb/dDetect/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
)

var Logger = logger.GetLogger("rpc")

// serverCatalog is a struct that represents a catalog served by the RPC server
// It contains the loaded catalog, the provider matching against it and the adapter
// that handles requests for the catalog
type serverCatalog struct {
	Catalog  *catalog.Catalog
	Provider *match.Provider
	Adapter  IRPCServerAdapter
}

// RPCServer serves match requests for any number of catalogs
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	catalogs   *xsync.MapOf[uint64, serverCatalog]
	metrics    *serverMetrics
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewJSONSerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	// Create the RPC server
	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		catalogs:   xsync.NewMapOf[uint64, serverCatalog](),
		metrics:    newServerMetrics(),
	}
}

// matchOptions returns the provider options of the configuration, unset values
// keep their defaults
func (s *RPCServer) matchOptions() match.Options {
	opts := match.DefaultOptions()
	if s.config.MaxDistance > 0 {
		opts.MaxDistance = s.config.MaxDistance
	}
	if s.config.Workers > 0 {
		opts.Workers = s.config.Workers
	}
	if s.config.ParallelThreshold > 0 {
		opts.ParallelThreshold = s.config.ParallelThreshold
	}
	return opts
}

// AddCatalog serves a loaded catalog under the given id. The server owns the catalog
// from now on and closes it in Close.
func (s *RPCServer) AddCatalog(catalogId uint64, c *catalog.Catalog) error {
	if _, ok := s.catalogs.Load(catalogId); ok {
		return fmt.Errorf("catalog %d already exists", catalogId)
	}

	provider, err := match.NewProvider(c, s.matchOptions())
	if err != nil {
		return fmt.Errorf("catalog %d: %w", catalogId, err)
	}

	if _, loaded := s.catalogs.LoadOrStore(catalogId, serverCatalog{
		Catalog:  c,
		Provider: provider,
		Adapter:  NewCatalogServerAdapter(),
	}); loaded {
		return fmt.Errorf("catalog %d already exists", catalogId)
	}
	s.metrics.registerCatalog(catalogId, c)

	Logger.Infof("serving catalog %q (version %d) as %d", c.Name(), c.Version(), catalogId)
	return nil
}

// handle decodes a request, lets the adapter of the addressed catalog handle it
// and encodes the response
func (s *RPCServer) handle(catalogId uint64, req []byte) []byte {
	var msg common.Message
	var respMsg common.Message

	// Get appropriate catalog
	sc, ok := s.catalogs.Load(catalogId)

	// Case catalog does not exist -> error
	if !ok {
		s.metrics.rejected("unknown_catalog")
		respMsg = *common.NewErrorResponse(fmt.Sprintf("catalog %d not found", catalogId))
	} else {
		// Decode the request
		err := s.serializer.Deserialize(req, &msg)

		if err != nil {
			s.metrics.rejected("invalid_request")
			respMsg = *common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
		} else {
			// Let the adapter handle the request
			start := time.Now()
			respMsg = *sc.Adapter.Handle(&msg, sc.Provider)
			s.metrics.observe(catalogId, msg.MsgType, respMsg.Err != "", start)
		}
	}

	// Return result
	val, err := s.serializer.Serialize(respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return val
}

// WriteMetrics writes the metrics of the server in the Prometheus text format
func (s *RPCServer) WriteMetrics(w io.Writer) {
	s.metrics.write(w)
}

func (s *RPCServer) init() error {

	// Init logger
	if err := common.InitLoggers(s.config.LogLevel); err != nil {
		return err
	}

	// LOAD CATALOGS

	/*
		Note: A single RPC Server can serve any number of catalogs. Each catalog is
		loaded from its own file in its own mode, the cache configuration and the
		match options are shared. The catalogs are loaded concurrently, catalogs
		loaded before an error are registered and released by Close.
	*/

	var g errgroup.Group
	for _, cat := range s.config.Catalogs {
		g.Go(func() error {
			return s.loadCatalog(cat)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	Logger.Infof("dDetect setup completed successfully")

	// Configure the transport layer
	s.transport.RegisterHandler(s.handle)
	s.transport.RegisterMetrics(s.WriteMetrics)

	return nil
}

// loadCatalog loads a configured catalog and adds it to the server
func (s *RPCServer) loadCatalog(cat common.ServerCatalog) error {
	mode, err := catalog.ParseMode(cat.Mode)
	if err != nil {
		return fmt.Errorf("catalog %d: %w", cat.CatalogID, err)
	}

	c, err := catalog.LoadFile(cat.Path, catalog.Options{
		Mode:        mode,
		Cache:       s.config.Cache,
		UseTempFile: s.config.UseTempFile,
		TempDir:     s.config.TempDir,
	})
	if err != nil {
		return fmt.Errorf("catalog %d: %w", cat.CatalogID, err)
	}

	if err := s.AddCatalog(cat.CatalogID, c); err != nil {
		return errors.Join(err, c.Close())
	}
	return nil
}

// Serve starts the RPC server
// This function will also load the catalogs and start the transport layer
func (s *RPCServer) Serve() error {
	err := s.init()
	if err != nil {
		return errors.Join(err, s.Close())
	}
	return s.transport.Listen(s.config)
}

// Close closes all catalogs of the server
func (s *RPCServer) Close() error {
	var errs []error
	s.catalogs.Range(func(id uint64, sc serverCatalog) bool {
		errs = append(errs, sc.Catalog.Close())
		s.catalogs.Delete(id)
		return true
	})
	return errors.Join(errs...)
}
