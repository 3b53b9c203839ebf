// Package sedaclient adapts the Cosmos SDK client stack into the
// task.SedaSubmitter, cosmoscoord.SequenceQuerier, batchposter.BatchSource
// and fanout.ProofFetcher interfaces the rest of the solver depends on.
// Grounded on the teacher's client.Context + tx.Factory + keyring signing
// shape (tests/systemtests/clients/cosmosclient.go), generalized from its
// ethsecp256k1/EVM-encoding specifics to plain secp256k1 keys over an
// in-memory keyring, since SEDA's own message and query wire types are an
// external protocol detail (spec §1 scopes the SEDA RPC/signing
// collaborator out) injected here as MsgBuilder/decoder hooks rather than
// invented protobuf types.
package sedaclient

import (
	"context"
	"encoding/hex"
	"fmt"

	"cosmossdk.io/log"
	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/client/flags"
	clienttx "github.com/cosmos/cosmos-sdk/client/tx"
	"github.com/cosmos/cosmos-sdk/codec"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/cosmos-sdk/crypto/hd"
	"github.com/cosmos/cosmos-sdk/crypto/keyring"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authtx "github.com/cosmos/cosmos-sdk/x/auth/tx"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"

	"github.com/sedaprotocol/seda-push-solver/internal/drhash"
	"github.com/sedaprotocol/seda-push-solver/internal/sedatypes"
)

const keyName = "solver"

// MsgBuilder constructs the chain-specific submission message for a
// DataRequest; SEDA's message type is outside the retrieved corpus, so
// callers supply the real one.
type MsgBuilder func(dr sedatypes.DataRequest, memo []byte, sender sdk.AccAddress) (sdk.Msg, error)

// ResultDecoder, BatchDecoder and ProofDecoder turn a raw ABCI query
// response into the solver's data model; same external-wire-format
// boundary as MsgBuilder.
type ResultDecoder func(raw []byte) (*sedatypes.DataResult, error)
type BatchDecoder func(raw []byte) (*sedatypes.Batch, error)
type ProofDecoder func(raw []byte) ([][32]byte, error)

// Config holds the adapter's connection and signing settings.
type Config struct {
	ChainID             string
	RPCEndpoint         string
	Mnemonic            string
	Bech32AddrPrefix    string
	GasAdjustment       float64
	DataResultQueryPath string
	BatchQueryPath      string
	ProofQueryPath      string
}

// Client is the SEDA client adapter (C16).
type Client struct {
	logger    log.Logger
	cfg       Config
	rpc       *rpchttp.HTTP
	clientCtx client.Context
	factory   clienttx.Factory
	address   sdk.AccAddress

	buildMsg     MsgBuilder
	decodeResult ResultDecoder
	decodeBatch  BatchDecoder
	decodeProof  ProofDecoder
}

// New dials rpcEndpoint, derives a signing key from cfg.Mnemonic via an
// in-memory keyring, and wires the Cosmos SDK tx factory for submission.
func New(cfg Config, logger log.Logger, buildMsg MsgBuilder, decodeResult ResultDecoder, decodeBatch BatchDecoder, decodeProof ProofDecoder) (*Client, error) {
	rpc, err := rpchttp.New(cfg.RPCEndpoint, "/websocket")
	if err != nil {
		return nil, fmt.Errorf("sedaclient: connect to %s: %w", cfg.RPCEndpoint, err)
	}

	registry := codectypes.NewInterfaceRegistry()
	authtypes.RegisterInterfaces(registry)
	cdc := codec.NewProtoCodec(registry)

	kb := keyring.NewInMemory(cdc)
	hdPath := hd.CreateHDPath(sdk.CoinType, 0, 0).String()
	if _, err := kb.NewAccount(keyName, cfg.Mnemonic, "", hdPath, hd.Secp256k1); err != nil {
		return nil, fmt.Errorf("sedaclient: derive key from mnemonic: %w", err)
	}
	record, err := kb.Key(keyName)
	if err != nil {
		return nil, fmt.Errorf("sedaclient: load derived key: %w", err)
	}
	addr, err := record.GetAddress()
	if err != nil {
		return nil, fmt.Errorf("sedaclient: resolve key address: %w", err)
	}

	txConfig := authtx.NewTxConfig(cdc, authtx.DefaultSignModes)

	clientCtx := client.Context{}.
		WithChainID(cfg.ChainID).
		WithClient(rpc).
		WithKeyring(kb).
		WithCodec(cdc).
		WithInterfaceRegistry(registry).
		WithTxConfig(txConfig).
		WithAccountRetriever(authtypes.AccountRetriever{}).
		WithBroadcastMode(flags.BroadcastSync).
		WithFromAddress(addr).
		WithFromName(keyName)

	factory := clienttx.Factory{}.
		WithChainID(cfg.ChainID).
		WithKeybase(kb).
		WithTxConfig(txConfig).
		WithAccountRetriever(authtypes.AccountRetriever{}).
		WithGasAdjustment(cfg.GasAdjustment)

	return &Client{
		logger:       logger,
		cfg:          cfg,
		rpc:          rpc,
		clientCtx:    clientCtx,
		factory:      factory,
		address:      addr,
		buildMsg:     buildMsg,
		decodeResult: decodeResult,
		decodeBatch:  decodeBatch,
		decodeProof:  decodeProof,
	}, nil
}

// Address returns the solver's SEDA bech32 account address.
func (c *Client) Address() sdk.AccAddress { return c.address }

// GetAccountSequence satisfies cosmoscoord.SequenceQuerier: reads the
// on-chain account sequence for the solver's own address.
func (c *Client) GetAccountSequence(ctx context.Context) (uint64, error) {
	_, seq, err := c.clientCtx.AccountRetriever.GetAccountNumberSequence(c.clientCtx, c.address)
	if err != nil {
		return 0, fmt.Errorf("sedaclient: get account sequence: %w", err)
	}
	return seq, nil
}

// SubmitTx satisfies task.SedaSubmitter: signs and broadcasts dr at
// sequence seq, stamping memo verbatim as the tx memo.
func (c *Client) SubmitTx(ctx context.Context, dr sedatypes.DataRequest, memo []byte, seq uint64) (txHash, drID string, blockHeight uint64, err error) {
	msg, err := c.buildMsg(dr, memo, c.address)
	if err != nil {
		return "", "", 0, fmt.Errorf("sedaclient: build submission message: %w", err)
	}

	txFactory := c.factory.WithSequence(seq)

	txBuilder, err := txFactory.BuildUnsignedTx(msg)
	if err != nil {
		return "", "", 0, fmt.Errorf("sedaclient: build unsigned tx: %w", err)
	}
	txBuilder.SetMemo(string(memo))

	if err := clienttx.Sign(ctx, txFactory, keyName, txBuilder, true); err != nil {
		return "", "", 0, fmt.Errorf("sedaclient: sign tx: %w", err)
	}

	txBytes, err := c.clientCtx.TxConfig.TxEncoder()(txBuilder.GetTx())
	if err != nil {
		return "", "", 0, fmt.Errorf("sedaclient: encode tx: %w", err)
	}

	res, err := c.clientCtx.BroadcastTx(txBytes)
	if err != nil {
		return "", "", 0, fmt.Errorf("sedaclient: broadcast tx: %w", err)
	}
	if res.Code != 0 {
		return "", "", 0, fmt.Errorf("sedaclient: tx rejected, code %d: %s", res.Code, res.RawLog)
	}

	// The dr_id covers the stamped memo actually submitted, not dr's base memo.
	stamped := dr
	stamped.Memo = memo
	computed := drhash.Compute(stamped)
	return res.TxHash, hex.EncodeToString(computed[:]), uint64(res.Height), nil
}

// GetDataResult satisfies task.SedaSubmitter: looks up a finalized
// DataResult by drID via an ABCI query, returning (nil, nil) while the
// result hasn't finalized yet.
func (c *Client) GetDataResult(ctx context.Context, drID string, postHeight uint64) (*sedatypes.DataResult, error) {
	raw, err := c.abciQuery(ctx, c.cfg.DataResultQueryPath, resultQueryData(drID))
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return c.decodeResult(raw)
}

// GetSignedBatch satisfies batchposter.BatchSource: fetches the signed
// batch at height via an ABCI query.
func (c *Client) GetSignedBatch(ctx context.Context, height uint64) (*sedatypes.Batch, error) {
	raw, err := c.abciQuery(ctx, c.cfg.BatchQueryPath, batchQueryData(height))
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("sedaclient: no signed batch at height %d", height)
	}
	return c.decodeBatch(raw)
}

// GetValidatorProof satisfies fanout.ProofFetcher: fetches the merkle
// proof tying drID to its batch at batchHeight.
func (c *Client) GetValidatorProof(ctx context.Context, drID [32]byte, batchHeight uint64) ([][32]byte, error) {
	raw, err := c.abciQuery(ctx, c.cfg.ProofQueryPath, proofQueryData(drID, batchHeight))
	if err != nil {
		return nil, err
	}
	return c.decodeProof(raw)
}

// resultQueryData, batchQueryData and proofQueryData build the raw ABCI
// query payload for each lookup; split out from their callers so the
// encoding can be exercised without a live RPC connection.
func resultQueryData(drID string) []byte {
	return []byte(drID)
}

func batchQueryData(height uint64) []byte {
	return []byte(fmt.Sprintf("%d", height))
}

func proofQueryData(drID [32]byte, batchHeight uint64) []byte {
	query := make([]byte, 0, len(drID)+20)
	query = append(query, drID[:]...)
	query = append(query, []byte(fmt.Sprintf("-%d", batchHeight))...)
	return query
}

func (c *Client) abciQuery(ctx context.Context, path string, data []byte) ([]byte, error) {
	resp, err := c.rpc.ABCIQuery(ctx, path, data)
	if err != nil {
		return nil, fmt.Errorf("sedaclient: abci query %s: %w", path, err)
	}
	if resp.Response.Code != 0 {
		return nil, fmt.Errorf("sedaclient: abci query %s returned code %d: %s", path, resp.Response.Code, resp.Response.Log)
	}
	return resp.Response.Value, nil
}
