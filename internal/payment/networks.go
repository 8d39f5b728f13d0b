package payment

import (
	"embed"
	"fmt"
	"math/big"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sponsorgate-labs/sponsorgate-node/internal/utils"
)

//go:embed networks.yaml
var defaultNetworks embed.FS

// NetworkConfig is the static per-network configuration: chain id, contract
// addresses, RPC endpoint and sponsor gas limits. Wei amounts are decimal
// strings since they exceed int64.
type NetworkConfig struct {
	Name              string `yaml:"name"`
	ChainID           int64  `yaml:"chain_id"`
	RPCURL            string `yaml:"rpc_url"`
	PaymentVerifier   string `yaml:"payment_verifier"`
	BatchExecutor     string `yaml:"batch_executor"`
	FacilitatorWallet string `yaml:"facilitator_wallet"`
	FacilitatorURL    string `yaml:"facilitator_url"`
	MaxGasPriceWei    string `yaml:"max_gas_price_wei"`
	GasBudgetPerTxWei string `yaml:"gas_budget_per_tx_wei"`
	GasBudgetDailyWei string `yaml:"gas_budget_daily_wei"`
}

type networksFile struct {
	Networks map[string]*NetworkConfig `yaml:"networks"`
}

// NetworkRegistry resolves CAIP-2 network identifiers (e.g. "eip155:84532")
// to their static configuration
type NetworkRegistry struct {
	networks map[string]*NetworkConfig
	logger   *utils.LogsManager
}

// NewNetworkRegistry loads network configuration from the configured YAML file,
// falling back to the embedded defaults
func NewNetworkRegistry(cm *utils.ConfigManager, logger *utils.LogsManager) (*NetworkRegistry, error) {
	var data []byte
	var err error

	path := cm.GetConfigWithDefault("networks_file", "")
	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read networks file %s: %v", path, err)
		}
	} else {
		data, err = defaultNetworks.ReadFile("networks.yaml")
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded networks: %v", err)
		}
	}

	var parsed networksFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse networks yaml: %v", err)
	}

	if len(parsed.Networks) == 0 {
		return nil, fmt.Errorf("networks configuration is empty")
	}

	for networkID, network := range parsed.Networks {
		if err := validateNetwork(networkID, network); err != nil {
			return nil, err
		}
	}

	logger.Info(fmt.Sprintf("Loaded %d network configurations", len(parsed.Networks)), "networks")

	return &NetworkRegistry{
		networks: parsed.Networks,
		logger:   logger,
	}, nil
}

func validateNetwork(networkID string, network *NetworkConfig) error {
	if !strings.HasPrefix(networkID, "eip155:") {
		return fmt.Errorf("network %s: only eip155 networks are supported", networkID)
	}
	if network.ChainID == 0 {
		return fmt.Errorf("network %s: missing chain_id", networkID)
	}
	if network.PaymentVerifier == "" || network.BatchExecutor == "" {
		return fmt.Errorf("network %s: missing verifier or batch executor address", networkID)
	}
	return nil
}

// Get resolves a CAIP-2 network identifier
func (nr *NetworkRegistry) Get(networkID string) (*NetworkConfig, error) {
	network, ok := nr.networks[networkID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, networkID)
	}
	return network, nil
}

// Has reports whether a network is configured
func (nr *NetworkRegistry) Has(networkID string) bool {
	_, ok := nr.networks[networkID]
	return ok
}

// NetworkIDs returns all configured CAIP-2 network identifiers
func (nr *NetworkRegistry) NetworkIDs() []string {
	ids := make([]string, 0, len(nr.networks))
	for id := range nr.networks {
		ids = append(ids, id)
	}
	return ids
}

// MaxGasPrice returns the sponsor's gas price ceiling in wei, or nil if unset
func (nc *NetworkConfig) MaxGasPrice() *big.Int {
	return parseWei(nc.MaxGasPriceWei)
}

// GasBudgetPerTx returns the per-transaction sponsor gas budget in wei, or nil if unset
func (nc *NetworkConfig) GasBudgetPerTx() *big.Int {
	return parseWei(nc.GasBudgetPerTxWei)
}

// GasBudgetDaily returns the rolling daily sponsor gas budget in wei, or nil if unset
func (nc *NetworkConfig) GasBudgetDaily() *big.Int {
	return parseWei(nc.GasBudgetDailyWei)
}

func parseWei(value string) *big.Int {
	if value == "" {
		return nil
	}
	wei, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil
	}
	return wei
}
