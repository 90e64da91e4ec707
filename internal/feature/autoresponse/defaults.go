package autoresponse

import "tg_support_bot/internal/domain"

// DefaultResponses is the starter trigger table seeded by
// `supportctl responses seed`.
func DefaultResponses() []domain.AutoResponse {
	return []domain.AutoResponse{
		{
			Trigger: "airdrop real fake legit",
			Response: "⚠️ Airdrop Safety Notice\n\n" +
				"Always verify airdrops through official channels:\n" +
				"✅ Official website\n✅ Official social media\n✅ Community verification\n\n" +
				"❌ Never share private keys\n❌ Don't connect wallet to suspicious sites\n\n" +
				"Stay safe! 🛡️",
		},
		{
			Trigger: "scam fraud fake project",
			Response: "🚨 Scam Alert Guidelines\n\n" +
				"🔍 How to identify scams:\n" +
				"• Too good to be true promises\n• Urgent time pressure\n" +
				"• Asking for private keys/seeds\n• Unverified team/project\n\n" +
				"💡 Always DYOR (Do Your Own Research)!",
		},
		{
			Trigger: "wallet connect metamask trust",
			Response: "🔐 Wallet Security Tips\n\n" +
				"✅ Best practices:\n" +
				"• Never share seed phrases\n• Use hardware wallets for large amounts\n" +
				"• Verify URLs before connecting\n• Enable 2FA when possible\n\n" +
				"🛡️ Your security is our priority!",
		},
		{
			Trigger: "price when moon lambo",
			Response: "📈 Price Discussion\n\n" +
				"We don't provide financial advice or price predictions.\n\n" +
				"💡 Remember:\n" +
				"• DYOR before investing\n• Only invest what you can afford to lose\n• Market is volatile\n\n" +
				"Focus on the technology and utility! 🚀",
		},
	}
}
