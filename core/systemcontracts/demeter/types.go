package demeter

import _ "embed"

// contract codes for Buffalo upgrade
var (
	//go:embed buffalo/ValidatorContract
	BuffaloValidatorContract string
	//go:embed buffalo/SlashContract
	BuffaloSlashContract string
	//go:embed buffalo/SystemRewardContract
	BuffaloSystemRewardContract string
	//go:embed buffalo/LightClientContract
	BuffaloLightClientContract string
	//go:embed buffalo/RelayerHubContract
	BuffaloRelayerHubContract string
	//go:embed buffalo/CandidateHubContract
	BuffaloCandidateHubContract string
	//go:embed buffalo/GovHubContract
	BuffaloGovHubContract string
	//go:embed buffalo/PledgeCandidateContract
	BuffaloPledgeCandidateContract string
	//go:embed buffalo/BurnContract
	BuffaloBurnContract string
	//go:embed buffalo/FoundationContract
	BuffaloFoundationContract string
	//go:embed buffalo/StakeHubContract
	BuffaloStakeHubContract string
	//go:embed buffalo/CoreAgentContract
	BuffaloCoreAgentContract string
	//go:embed buffalo/HashAgentContract
	BuffaloHashAgentContract string
	//go:embed buffalo/BTCAgentContract
	BuffaloBTCAgentContract string
	//go:embed buffalo/BTCStakeContract
	BuffaloBTCStakeContract string
	//go:embed buffalo/BTCLSTStakeContract
	BuffaloBTCLSTStakeContract string
	//go:embed buffalo/BTCLSTTokenContract
	BuffaloBTCLSTTokenContract string
)

// contract codes for Mainnet upgrade
var (
	//go:embed mainnet/ValidatorContract
	MainnetValidatorContract string
	//go:embed mainnet/SlashContract
	MainnetSlashContract string
	//go:embed mainnet/SystemRewardContract
	MainnetSystemRewardContract string
	//go:embed mainnet/LightClientContract
	MainnetLightClientContract string
	//go:embed mainnet/RelayerHubContract
	MainnetRelayerHubContract string
	//go:embed mainnet/CandidateHubContract
	MainnetCandidateHubContract string
	//go:embed mainnet/GovHubContract
	MainnetGovHubContract string
	//go:embed mainnet/PledgeCandidateContract
	MainnetPledgeCandidateContract string
	//go:embed mainnet/BurnContract
	MainnetBurnContract string
	//go:embed mainnet/FoundationContract
	MainnetFoundationContract string
	//go:embed mainnet/StakeHubContract
	MainnetStakeHubContract string
	//go:embed mainnet/CoreAgentContract
	MainnetCoreAgentContract string
	//go:embed mainnet/HashAgentContract
	MainnetHashAgentContract string
	//go:embed mainnet/BTCAgentContract
	MainnetBTCAgentContract string
	//go:embed mainnet/BTCStakeContract
	MainnetBTCStakeContract string
	//go:embed mainnet/BTCLSTStakeContract
	MainnetBTCLSTStakeContract string
	//go:embed mainnet/BTCLSTTokenContract
	MainnetBTCLSTTokenContract string
)
